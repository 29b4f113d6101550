package simserver_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/mildmongrel/thicket/internal/framing"
	"github.com/mildmongrel/thicket/internal/protocol"
	"github.com/mildmongrel/thicket/internal/simserver"
)

type rawClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, ss *simserver.SimServer) *rawClient {
	t.Helper()
	is := is.New(t)

	conn, err := net.Dial("tcp", ss.Addr().String())
	is.NoErr(err)
	t.Cleanup(func() { conn.Close() })

	return &rawClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (rc *rawClient) send(msg protocol.ClientMsg) {
	rc.t.Helper()
	is := is.New(rc.t)

	data, err := framing.EncodeClientMsg(msg)
	is.NoErr(err)

	err = rc.conn.SetWriteDeadline(time.Now().Add(time.Second))
	is.NoErr(err)
	_, err = rc.conn.Write(data)
	is.NoErr(err)
}

func (rc *rawClient) recv() protocol.ServerMsg {
	rc.t.Helper()
	is := is.New(rc.t)

	err := rc.conn.SetReadDeadline(time.Now().Add(time.Second))
	is.NoErr(err)
	msg, err := framing.DecodeServerMsg(rc.reader)
	is.NoErr(err)
	return msg
}

// login completes the greeting and login exchange and returns the rooms the
// server announced.
func (rc *rawClient) login(name string) *protocol.RoomsInfoInd {
	rc.t.Helper()
	is := is.New(rc.t)

	_, ok := rc.recv().(*protocol.GreetingInd)
	is.True(ok)

	rc.send(&protocol.LoginReq{Name: name})
	rsp, ok := rc.recv().(*protocol.LoginRsp)
	is.True(ok)
	is.Equal(rsp.Result, protocol.LoginResultSuccess)

	rooms, ok := rc.recv().(*protocol.RoomsInfoInd)
	is.True(ok)
	return rooms
}

func startServer(t *testing.T, cfg simserver.Config) *simserver.SimServer {
	t.Helper()
	is := is.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ss, err := simserver.NewSimServer("tcp", "127.0.0.1:0", cfg, nil)
	is.NoErr(err)
	go ss.Run(ctx)

	return ss
}

func roomConfig(chairs, bots uint32) protocol.RoomConfig {
	return protocol.RoomConfig{
		Name:       "test room",
		ChairCount: chairs,
		BotCount:   bots,
		Rounds: []protocol.RoundConfig{
			{BoosterRoundConfig: &protocol.BoosterRoundConfig{
				Time:        60,
				CardBundles: []protocol.CardBundle{{SetCode: "M19"}},
			}},
		},
	}
}

func TestGreetingAndLogin(t *testing.T) {
	is := is.New(t)

	ss := startServer(t, simserver.DefaultConfig())

	one := dial(t, ss)
	greeting, ok := one.recv().(*protocol.GreetingInd)
	is.True(ok)
	is.Equal(greeting.ServerName, "thicket-sim")

	one.send(&protocol.LoginReq{Name: "sim_0000"})
	rsp, ok := one.recv().(*protocol.LoginRsp)
	is.True(ok)
	is.Equal(rsp.Result, protocol.LoginResultSuccess)

	rooms, ok := one.recv().(*protocol.RoomsInfoInd)
	is.True(ok)
	is.Equal(len(rooms.AddedRooms), 0)

	// same name again
	two := dial(t, ss)
	_, ok = two.recv().(*protocol.GreetingInd)
	is.True(ok)
	two.send(&protocol.LoginReq{Name: "sim_0000"})
	rsp, ok = two.recv().(*protocol.LoginRsp)
	is.True(ok)
	is.Equal(rsp.Result, protocol.LoginResultFailureNameInUse)

	is.Equal(ss.Stats().Logins, int64(1))
}

func TestCreateAndJoinRoom(t *testing.T) {
	is := is.New(t)

	ss := startServer(t, simserver.DefaultConfig())

	owner := dial(t, ss)
	owner.login("owner")

	owner.send(&protocol.CreateRoomReq{RoomConfig: roomConfig(4, 1)})
	created, ok := owner.recv().(*protocol.CreateRoomSuccessRsp)
	is.True(ok)

	added, ok := owner.recv().(*protocol.RoomsInfoInd)
	is.True(ok)
	is.Equal(len(added.AddedRooms), 1)
	is.Equal(added.AddedRooms[0].RoomID, created.RoomID)
	is.Equal(added.PlayerCounts[0].PlayerCount, uint32(1)) // the bot

	// a late login sees the room
	guest := dial(t, ss)
	rooms := guest.login("guest")
	is.Equal(len(rooms.AddedRooms), 1)
	is.Equal(rooms.AddedRooms[0].RoomConfig.ChairCount, uint32(4))

	guest.send(&protocol.JoinRoomReq{RoomID: created.RoomID})
	joined, ok := guest.recv().(*protocol.JoinRoomSuccessRspInd)
	is.True(ok)
	is.Equal(joined.RoomID, created.RoomID)
	is.Equal(joined.ChairIndex, uint32(0))

	counts, ok := guest.recv().(*protocol.RoomsInfoInd)
	is.True(ok)
	is.Equal(counts.PlayerCounts, []protocol.RoomPlayerCount{{RoomID: created.RoomID, PlayerCount: 2}})

	guest.send(&protocol.JoinRoomReq{RoomID: 999})
	failed, ok := guest.recv().(*protocol.JoinRoomFailureRsp)
	is.True(ok)
	is.Equal(failed.Result, protocol.JoinRoomResultFailureInvalidRoom)
}

func TestCreateRoomRejectsInvalidConfig(t *testing.T) {
	is := is.New(t)

	ss := startServer(t, simserver.DefaultConfig())

	owner := dial(t, ss)
	owner.login("owner")

	owner.send(&protocol.CreateRoomReq{RoomConfig: roomConfig(2, 2)})
	rsp, ok := owner.recv().(*protocol.CreateRoomFailureRsp)
	is.True(ok)
	is.Equal(rsp.Result, protocol.CreateRoomResultFailureInvalidConfig)
}

func TestCreateRoomRejectsDuplicateName(t *testing.T) {
	is := is.New(t)

	ss := startServer(t, simserver.DefaultConfig())

	owner := dial(t, ss)
	owner.login("owner")
	other := dial(t, ss)
	other.login("other")

	owner.send(&protocol.CreateRoomReq{RoomConfig: roomConfig(4, 0)})
	_, ok := owner.recv().(*protocol.CreateRoomSuccessRsp)
	is.True(ok)
	_, ok = owner.recv().(*protocol.RoomsInfoInd)
	is.True(ok)
	_, ok = other.recv().(*protocol.RoomsInfoInd)
	is.True(ok)

	other.send(&protocol.CreateRoomReq{RoomConfig: roomConfig(4, 0)})
	rsp, ok := other.recv().(*protocol.CreateRoomFailureRsp)
	is.True(ok)
	is.Equal(rsp.Result, protocol.CreateRoomResultFailureNameInUse)

	renamed := roomConfig(4, 0)
	renamed.Name = "other room"
	other.send(&protocol.CreateRoomReq{RoomConfig: renamed})
	_, ok = other.recv().(*protocol.CreateRoomSuccessRsp)
	is.True(ok)

	is.Equal(ss.Stats().RoomsCreated, int64(2))
}

func TestDraft(t *testing.T) {
	is := is.New(t)

	cfg := simserver.DefaultConfig()
	cfg.Picks = 2
	cfg.PackSize = 5
	ss := startServer(t, cfg)

	// a two-seat room; the bot takes the other chair
	player := dial(t, ss)
	player.login("player")

	player.send(&protocol.CreateRoomReq{RoomConfig: roomConfig(2, 1)})
	created, ok := player.recv().(*protocol.CreateRoomSuccessRsp)
	is.True(ok)
	_, ok = player.recv().(*protocol.RoomsInfoInd)
	is.True(ok)

	player.send(&protocol.JoinRoomReq{RoomID: created.RoomID})
	_, ok = player.recv().(*protocol.JoinRoomSuccessRspInd)
	is.True(ok)
	_, ok = player.recv().(*protocol.RoomsInfoInd)
	is.True(ok)

	player.send(&protocol.PlayerReadyInd{Ready: true})
	stage, ok := player.recv().(*protocol.RoomStageInd)
	is.True(ok)
	is.True(!stage.Complete)

	for pick := 0; pick < cfg.Picks; pick++ {
		p, ok := player.recv().(*protocol.PlayerCurrentPackInd)
		is.True(ok)
		is.Equal(len(p.Cards), cfg.PackSize-pick)

		player.send(&protocol.PlayerCardSelectionReq{PackID: p.PackID, Card: p.Cards[0]})
	}

	stage, ok = player.recv().(*protocol.RoomStageInd)
	is.True(ok)
	is.True(stage.Complete)

	removed, ok := player.recv().(*protocol.RoomsInfoInd)
	is.True(ok)
	is.Equal(removed.RemovedRooms, []uint32{created.RoomID})

	stats := ss.Stats()
	is.Equal(stats.DraftsCompleted, int64(1))
	is.Equal(stats.Picks, int64(cfg.Picks))
}

func TestCompressedRoomsSnapshot(t *testing.T) {
	is := is.New(t)

	cfg := simserver.DefaultConfig()
	cfg.Compression = framing.CompressionAlways
	ss := startServer(t, cfg)

	owner := dial(t, ss)
	owner.login("owner")
	for i := 0; i < 3; i++ {
		config := roomConfig(8, 0)
		config.Name = fmt.Sprintf("room %d", i)
		owner.send(&protocol.CreateRoomReq{RoomConfig: config})
		_, ok := owner.recv().(*protocol.CreateRoomSuccessRsp)
		is.True(ok)
		_, ok = owner.recv().(*protocol.RoomsInfoInd)
		is.True(ok)
	}

	// every frame from this server is compressed; the decoder does not care
	late := dial(t, ss)
	rooms := late.login("late")
	is.Equal(len(rooms.AddedRooms), 3)
	is.Equal(ss.Stats().RoomsCreated, int64(3))
}
