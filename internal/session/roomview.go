package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/mildmongrel/thicket/internal/protocol"
)

// ErrUnknownRoom means the server sent a player count for a room it never
// announced.
var ErrUnknownRoom = errors.New("player count for unknown room")

type Room struct {
	ChairCount        uint32
	PlayerCount       uint32
	PasswordProtected bool
}

func (r *Room) HasSpareChair() bool {
	return r.PlayerCount < r.ChairCount
}

// RoomView is a session's local picture of the server's rooms, rebuilt from
// rooms_info_ind updates.
type RoomView struct {
	rooms map[uint32]*Room
}

func NewRoomView() *RoomView {
	return &RoomView{rooms: make(map[uint32]*Room)}
}

// Apply merges an update. additions are applied before removals, removals
// before player counts. every player count naming a room that is not in the
// view is reported; the rest of the update still applies.
func (v *RoomView) Apply(ind *protocol.RoomsInfoInd) error {
	for _, added := range ind.AddedRooms {
		v.rooms[added.RoomID] = &Room{
			ChairCount:        added.RoomConfig.ChairCount,
			PasswordProtected: added.RoomConfig.PasswordProtected,
		}
	}

	for _, id := range ind.RemovedRooms {
		delete(v.rooms, id)
	}

	var errs error
	for _, count := range ind.PlayerCounts {
		room, ok := v.rooms[count.RoomID]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: %d", ErrUnknownRoom, count.RoomID))
			continue
		}
		room.PlayerCount = count.PlayerCount
	}

	return errs
}

// FirstJoinable returns the lowest room id with a free chair that can be
// joined without a password.
func (v *RoomView) FirstJoinable() (uint32, bool) {
	ids := make([]uint32, 0, len(v.rooms))
	for id, room := range v.rooms {
		if room.HasSpareChair() && !room.PasswordProtected {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, false
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0], true
}

func (v *RoomView) Room(id uint32) (Room, bool) {
	room, ok := v.rooms[id]
	if !ok {
		return Room{}, false
	}
	return *room, true
}

func (v *RoomView) Len() int {
	return len(v.rooms)
}
