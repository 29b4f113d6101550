// Package protocol models the messages exchanged with the thicket draft
// server. ClientMsg and ServerMsg are closed sum types: every variant is a
// pointer to one of the structs below, and an envelope carries exactly one.
package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

type Message interface {
	field() protowire.Number
	appendTo(b []byte) []byte
	unmarshal(b []byte) error
}

// ClientMsg is a message sent by a client to the server.
type ClientMsg interface {
	Message
	clientMsg()
}

// ServerMsg is a message sent by the server to a client.
type ServerMsg interface {
	Message
	serverMsg()
}

type ChatScope uint32

const (
	ChatScopeAll ChatScope = iota
	ChatScopeRoom
)

type LoginResult uint32

const (
	LoginResultSuccess LoginResult = iota
	LoginResultFailureInvalidName
	LoginResultFailureNameInUse
)

type CreateRoomResult uint32

const (
	CreateRoomResultSuccess CreateRoomResult = iota
	CreateRoomResultFailureInvalidConfig
	CreateRoomResultFailureTooManyRooms
	CreateRoomResultFailureNameInUse
)

type JoinRoomResult uint32

const (
	JoinRoomResultSuccess JoinRoomResult = iota
	JoinRoomResultFailureRoomFull
	JoinRoomResultFailureInvalidPassword
	JoinRoomResultFailureInvalidRoom
)

type CardBundleMethod uint32

const (
	CardBundleMethodBooster CardBundleMethod = iota
	CardBundleMethodCustomList
)

// ---- client to server ----

type KeepAliveInd struct{}

type ChatMessageInd struct {
	Scope ChatScope
	Text  string
}

type LoginReq struct {
	Name string
}

type CreateRoomReq struct {
	RoomConfig RoomConfig
}

type JoinRoomReq struct {
	RoomID   uint32
	Password string
}

type PlayerReadyInd struct {
	Ready bool
}

type PlayerCardSelectionReq struct {
	PackID uint32
	Card   Card
}

// ---- server to client ----

type GreetingInd struct {
	ServerName    string
	ServerVersion string
}

type LoginRsp struct {
	Result LoginResult
}

type RoomsInfoInd struct {
	AddedRooms   []RoomInfo
	RemovedRooms []uint32
	PlayerCounts []RoomPlayerCount
}

type CreateRoomSuccessRsp struct {
	RoomID uint32
}

type CreateRoomFailureRsp struct {
	Result CreateRoomResult
}

type JoinRoomSuccessRspInd struct {
	RoomID     uint32
	ChairIndex uint32
}

type JoinRoomFailureRsp struct {
	Result JoinRoomResult
	RoomID uint32
}

type PlayerCurrentPackInd struct {
	PackID uint32
	Cards  []Card
}

type RoomStageInd struct {
	Complete bool
}

// ---- shared ----

type Card struct {
	Name    string
	SetCode string
}

type RoomInfo struct {
	RoomID     uint32
	RoomConfig RoomConfig
}

type RoomPlayerCount struct {
	RoomID      uint32
	PlayerCount uint32
}

type RoomConfig struct {
	Name              string
	PasswordProtected bool
	ChairCount        uint32
	BotCount          uint32
	Rounds            []RoundConfig
}

type RoundConfig struct {
	BoosterRoundConfig *BoosterRoundConfig
}

type BoosterRoundConfig struct {
	Clockwise   bool
	Time        uint32
	CardBundles []CardBundle
}

type CardBundle struct {
	SetCode        string
	Method         CardBundleMethod
	SetReplacement bool
}

func (*KeepAliveInd) clientMsg()           {}
func (*ChatMessageInd) clientMsg()         {}
func (*LoginReq) clientMsg()               {}
func (*CreateRoomReq) clientMsg()          {}
func (*JoinRoomReq) clientMsg()            {}
func (*PlayerReadyInd) clientMsg()         {}
func (*PlayerCardSelectionReq) clientMsg() {}

func (*GreetingInd) serverMsg()           {}
func (*LoginRsp) serverMsg()              {}
func (*RoomsInfoInd) serverMsg()          {}
func (*CreateRoomSuccessRsp) serverMsg()  {}
func (*CreateRoomFailureRsp) serverMsg()  {}
func (*JoinRoomSuccessRspInd) serverMsg() {}
func (*JoinRoomFailureRsp) serverMsg()    {}
func (*PlayerCurrentPackInd) serverMsg()  {}
func (*RoomStageInd) serverMsg()          {}

func (*KeepAliveInd) field() protowire.Number           { return fieldKeepAliveInd }
func (*ChatMessageInd) field() protowire.Number         { return fieldChatMessageInd }
func (*LoginReq) field() protowire.Number               { return fieldLoginReq }
func (*CreateRoomReq) field() protowire.Number          { return fieldCreateRoomReq }
func (*JoinRoomReq) field() protowire.Number            { return fieldJoinRoomReq }
func (*PlayerReadyInd) field() protowire.Number         { return fieldPlayerReadyInd }
func (*PlayerCardSelectionReq) field() protowire.Number { return fieldPlayerCardSelectionReq }

func (*GreetingInd) field() protowire.Number           { return fieldGreetingInd }
func (*LoginRsp) field() protowire.Number              { return fieldLoginRsp }
func (*RoomsInfoInd) field() protowire.Number          { return fieldRoomsInfoInd }
func (*CreateRoomSuccessRsp) field() protowire.Number  { return fieldCreateRoomSuccessRsp }
func (*CreateRoomFailureRsp) field() protowire.Number  { return fieldCreateRoomFailureRsp }
func (*JoinRoomSuccessRspInd) field() protowire.Number { return fieldJoinRoomSuccessRspInd }
func (*JoinRoomFailureRsp) field() protowire.Number    { return fieldJoinRoomFailureRsp }
func (*PlayerCurrentPackInd) field() protowire.Number  { return fieldPlayerCurrentPackInd }
func (*RoomStageInd) field() protowire.Number          { return fieldRoomStageInd }

// Name returns the schema name of a message variant, for logs.
func Name(msg Message) string {
	switch msg.(type) {
	case *KeepAliveInd:
		return "keep_alive_ind"
	case *ChatMessageInd:
		return "chat_message_ind"
	case *LoginReq:
		return "login_req"
	case *CreateRoomReq:
		return "create_room_req"
	case *JoinRoomReq:
		return "join_room_req"
	case *PlayerReadyInd:
		return "player_ready_ind"
	case *PlayerCardSelectionReq:
		return "player_card_selection_req"
	case *GreetingInd:
		return "greeting_ind"
	case *LoginRsp:
		return "login_rsp"
	case *RoomsInfoInd:
		return "rooms_info_ind"
	case *CreateRoomSuccessRsp:
		return "create_room_success_rsp"
	case *CreateRoomFailureRsp:
		return "create_room_failure_rsp"
	case *JoinRoomSuccessRspInd:
		return "join_room_success_rspind"
	case *JoinRoomFailureRsp:
		return "join_room_failure_rsp"
	case *PlayerCurrentPackInd:
		return "player_current_pack_ind"
	case *RoomStageInd:
		return "room_stage_ind"
	}
	return "unknown"
}
