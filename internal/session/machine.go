package session

import (
	"fmt"
	"time"

	"github.com/mildmongrel/thicket/internal/debug"
	"github.com/mildmongrel/thicket/internal/protocol"
)

// tick services the timers. it runs before any inbound message of the same
// iteration.
func (s *Session) tick(now time.Time) {
	if !s.state.LoggedIn() {
		return
	}

	if s.timers.keepAlive.due(now) {
		s.send(&protocol.KeepAliveInd{})
		s.keepAlives.Add(1)
	}

	if s.timers.chatCheck.due(now) {
		s.maybeChat()
	}

	if s.state == StateInRoom && !s.draftStarted && !now.Before(s.timers.roomJoinDeadline) {
		s.logger.Warn().
			Uint32("room", s.roomID.Load()).
			Dur("waited", now.Sub(s.enteredRoomAt)).
			Msg("draft did not start, leaving")
		s.finish(StateComplete, nil)
	}
}

// handle applies one inbound message. messages that mean nothing in the
// current state are ignored without side effects.
func (s *Session) handle(msg protocol.ServerMsg, now time.Time) {
	s.logger.Debug().
		Str("msg", protocol.Name(msg)).
		Str("state", s.state.String()).
		Msg("recv")

	switch m := msg.(type) {
	case *protocol.GreetingInd:
		s.handleGreetingInd(m)
	case *protocol.LoginRsp:
		s.handleLoginRsp(m, now)
	case *protocol.RoomsInfoInd:
		s.handleRoomsInfoInd(m)
	case *protocol.CreateRoomSuccessRsp:
		s.handleCreateRoomSuccessRsp(m)
	case *protocol.CreateRoomFailureRsp:
		s.handleCreateRoomFailureRsp(m)
	case *protocol.JoinRoomSuccessRspInd:
		s.handleJoinRoomSuccessRspInd(m, now)
	case *protocol.JoinRoomFailureRsp:
		s.handleJoinRoomFailureRsp(m)
	case *protocol.PlayerCurrentPackInd:
		s.handlePlayerCurrentPackInd(m)
	case *protocol.RoomStageInd:
		s.handleRoomStageInd(m)
	default:
		debug.Assertf(false, "unhandled msg: %T", msg)
	}
}

func (s *Session) handleGreetingInd(m *protocol.GreetingInd) {
	if s.state != StateAwaitingGreeting {
		return
	}

	s.logger.Debug().
		Str("server", m.ServerName).
		Str("version", m.ServerVersion).
		Msg("greeted")

	s.send(&protocol.LoginReq{Name: s.name})
	s.setState(StateLoggingIn)
}

func (s *Session) handleLoginRsp(m *protocol.LoginRsp, now time.Time) {
	if s.state != StateLoggingIn {
		return
	}

	if m.Result != protocol.LoginResultSuccess {
		s.logger.Error().Uint32("result", uint32(m.Result)).Msg("login rejected")
		s.finish(StateFailed, fmt.Errorf("%w: result %d", ErrLoginFailed, m.Result))
		return
	}

	s.timers.keepAlive.arm(now)
	s.timers.chatCheck.arm(now)
	s.setState(StateLoggedIn)
}

func (s *Session) handleRoomsInfoInd(m *protocol.RoomsInfoInd) {
	if !s.state.LoggedIn() {
		return
	}

	if err := s.rooms.Apply(m); err != nil {
		s.logger.Error().Err(err).Msg("inconsistent rooms update")
	}

	if s.state != StateLoggedIn || s.joinSent || s.createSent {
		return
	}

	if roomID, ok := s.rooms.FirstJoinable(); ok {
		s.send(&protocol.JoinRoomReq{RoomID: roomID})
		s.joinSent = true
		return
	}

	s.roomsCreated++
	s.send(&protocol.CreateRoomReq{RoomConfig: s.cfg.roomConfig(s.name, s.roomsCreated)})
	s.createSent = true
}

func (s *Session) handleCreateRoomSuccessRsp(m *protocol.CreateRoomSuccessRsp) {
	if s.state != StateLoggedIn || !s.createSent {
		return
	}

	// the create attempt is resolved; from here on the join flag gates
	// retries
	s.createSent = false
	s.send(&protocol.JoinRoomReq{RoomID: m.RoomID})
	s.joinSent = true
}

func (s *Session) handleCreateRoomFailureRsp(m *protocol.CreateRoomFailureRsp) {
	if s.state != StateLoggedIn || !s.createSent {
		return
	}

	s.logger.Warn().Uint32("result", uint32(m.Result)).Msg("create room failed")
	s.createSent = false
}

func (s *Session) handleJoinRoomSuccessRspInd(m *protocol.JoinRoomSuccessRspInd, now time.Time) {
	if s.state != StateLoggedIn || !s.joinSent {
		return
	}

	s.inRoom = true
	s.enteredRoomAt = now
	s.timers.roomJoinDeadline = now.Add(s.cfg.DraftStartTimeout)
	s.roomID.Store(m.RoomID)

	s.send(&protocol.PlayerReadyInd{Ready: true})
	s.setState(StateInRoom)
}

func (s *Session) handleJoinRoomFailureRsp(m *protocol.JoinRoomFailureRsp) {
	if s.state != StateLoggedIn || !s.joinSent {
		return
	}

	s.logger.Warn().
		Uint32("room", m.RoomID).
		Uint32("result", uint32(m.Result)).
		Msg("join room failed")
	s.joinSent = false
}

func (s *Session) handlePlayerCurrentPackInd(m *protocol.PlayerCurrentPackInd) {
	if s.state != StateInRoom {
		return
	}

	s.draftStarted = true
	if len(m.Cards) == 0 {
		s.logger.Warn().Uint32("pack", m.PackID).Msg("empty pack")
		return
	}

	s.send(&protocol.PlayerCardSelectionReq{
		PackID: m.PackID,
		Card:   m.Cards[0],
	})
	s.picks.Add(1)
}

func (s *Session) handleRoomStageInd(m *protocol.RoomStageInd) {
	if s.state != StateInRoom {
		return
	}

	s.draftStarted = true
	if m.Complete {
		s.logger.Info().Int64("picks", s.picks.Load()).Msg("draft complete")
		s.finish(StateComplete, nil)
	}
}
