package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/mildmongrel/thicket/internal/protocol"
	"github.com/mildmongrel/thicket/internal/session"
)

func TestMailboxFIFO(t *testing.T) {
	is := is.New(t)

	mb := session.NewMailbox()
	for i := uint32(1); i <= 3; i++ {
		mb.Push(&protocol.CreateRoomSuccessRsp{RoomID: i})
	}
	is.Equal(mb.Len(), 3)

	for i := uint32(1); i <= 3; i++ {
		msg, ok := mb.Pop(time.Millisecond)
		is.True(ok)
		is.Equal(msg.(*protocol.CreateRoomSuccessRsp).RoomID, i)
	}
	is.Equal(mb.Len(), 0)
}

func TestMailboxPopTimesOut(t *testing.T) {
	is := is.New(t)

	mb := session.NewMailbox()
	start := time.Now()
	msg, ok := mb.Pop(20 * time.Millisecond)
	is.True(!ok)
	is.Equal(msg, nil)
	is.True(time.Since(start) >= 20*time.Millisecond)
}

func TestMailboxPopWakesOnPush(t *testing.T) {
	is := is.New(t)

	mb := session.NewMailbox()
	go func() {
		time.Sleep(10 * time.Millisecond)
		mb.Push(&protocol.GreetingInd{ServerName: "late"})
	}()

	msg, ok := mb.Pop(time.Second)
	is.True(ok)
	is.Equal(msg.(*protocol.GreetingInd).ServerName, "late")
}

func TestRoomViewApply(t *testing.T) {
	is := is.New(t)

	view := session.NewRoomView()
	err := view.Apply(&protocol.RoomsInfoInd{
		AddedRooms: []protocol.RoomInfo{
			{RoomID: 1, RoomConfig: protocol.RoomConfig{ChairCount: 8}},
			{RoomID: 2, RoomConfig: protocol.RoomConfig{ChairCount: 4}},
		},
		PlayerCounts: []protocol.RoomPlayerCount{
			{RoomID: 1, PlayerCount: 8},
			{RoomID: 2, PlayerCount: 1},
		},
	})
	is.NoErr(err)
	is.Equal(view.Len(), 2)

	id, ok := view.FirstJoinable()
	is.True(ok)
	is.Equal(id, uint32(2))

	// removals apply before counts, so a count for a room removed in the
	// same update is an error
	err = view.Apply(&protocol.RoomsInfoInd{
		RemovedRooms: []uint32{2},
		PlayerCounts: []protocol.RoomPlayerCount{
			{RoomID: 2, PlayerCount: 2},
			{RoomID: 9, PlayerCount: 1},
			{RoomID: 1, PlayerCount: 7},
		},
	})
	is.True(errors.Is(err, session.ErrUnknownRoom))
	is.Equal(view.Len(), 1)

	room, ok := view.Room(1)
	is.True(ok)
	is.Equal(room.PlayerCount, uint32(7)) // the rest of the update applied
	is.True(room.HasSpareChair())

	_, ok = view.Room(2)
	is.True(!ok)
}
