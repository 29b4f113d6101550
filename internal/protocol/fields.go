package protocol

import "google.golang.org/protobuf/encoding/protowire"

// NOTE: field numbers mirror the oneof ordering of ClientToServerMsg and
// ServerToClientMsg in the server's messages.proto. if the server schema is
// renumbered this file is the only place that needs to follow.

// ClientToServerMsg
const (
	fieldKeepAliveInd           protowire.Number = 1
	fieldChatMessageInd         protowire.Number = 2
	fieldLoginReq               protowire.Number = 3
	fieldCreateRoomReq          protowire.Number = 4
	fieldJoinRoomReq            protowire.Number = 5
	fieldPlayerReadyInd         protowire.Number = 6
	fieldPlayerCardSelectionReq protowire.Number = 7
)

// ServerToClientMsg
const (
	fieldGreetingInd           protowire.Number = 1
	fieldLoginRsp              protowire.Number = 2
	fieldRoomsInfoInd          protowire.Number = 3
	fieldCreateRoomSuccessRsp  protowire.Number = 4
	fieldCreateRoomFailureRsp  protowire.Number = 5
	fieldJoinRoomSuccessRspInd protowire.Number = 6
	fieldJoinRoomFailureRsp    protowire.Number = 7
	fieldPlayerCurrentPackInd  protowire.Number = 8
	fieldRoomStageInd          protowire.Number = 9
)

func newClientMsg(num protowire.Number) ClientMsg {
	switch num {
	case fieldKeepAliveInd:
		return &KeepAliveInd{}
	case fieldChatMessageInd:
		return &ChatMessageInd{}
	case fieldLoginReq:
		return &LoginReq{}
	case fieldCreateRoomReq:
		return &CreateRoomReq{}
	case fieldJoinRoomReq:
		return &JoinRoomReq{}
	case fieldPlayerReadyInd:
		return &PlayerReadyInd{}
	case fieldPlayerCardSelectionReq:
		return &PlayerCardSelectionReq{}
	}
	return nil
}

func newServerMsg(num protowire.Number) ServerMsg {
	switch num {
	case fieldGreetingInd:
		return &GreetingInd{}
	case fieldLoginRsp:
		return &LoginRsp{}
	case fieldRoomsInfoInd:
		return &RoomsInfoInd{}
	case fieldCreateRoomSuccessRsp:
		return &CreateRoomSuccessRsp{}
	case fieldCreateRoomFailureRsp:
		return &CreateRoomFailureRsp{}
	case fieldJoinRoomSuccessRspInd:
		return &JoinRoomSuccessRspInd{}
	case fieldJoinRoomFailureRsp:
		return &JoinRoomFailureRsp{}
	case fieldPlayerCurrentPackInd:
		return &PlayerCurrentPackInd{}
	case fieldRoomStageInd:
		return &RoomStageInd{}
	}
	return nil
}
