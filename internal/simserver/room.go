package simserver

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/mildmongrel/thicket/internal/protocol"
)

const (
	maxChairs = 16
	maxRounds = 8
)

type pack struct {
	id    uint32
	cards []protocol.Card
}

type room struct {
	id     uint32
	config protocol.RoomConfig

	// seats for human players; bots fill the remaining chairs
	chairs []*client
	ready  map[*client]bool

	started bool
	round   int
	pick    int
	pending map[*client]pack
}

func newRoom(id uint32, config protocol.RoomConfig) *room {
	return &room{
		id:      id,
		config:  config,
		chairs:  make([]*client, config.ChairCount-config.BotCount),
		ready:   make(map[*client]bool),
		pending: make(map[*client]pack),
	}
}

func (r *room) players() []*client {
	players := make([]*client, 0, len(r.chairs))
	for _, c := range r.chairs {
		if c != nil {
			players = append(players, c)
		}
	}
	return players
}

func (r *room) full() bool {
	return len(r.players()) == len(r.chairs)
}

func (r *room) allReady() bool {
	for _, c := range r.chairs {
		if c == nil || !r.ready[c] {
			return false
		}
	}
	return true
}

func (r *room) info() protocol.RoomInfo {
	return protocol.RoomInfo{RoomID: r.id, RoomConfig: r.config}
}

// playerCount counts bots as seated players.
func (r *room) playerCount() protocol.RoomPlayerCount {
	return protocol.RoomPlayerCount{
		RoomID:      r.id,
		PlayerCount: uint32(len(r.players())) + r.config.BotCount,
	}
}

func validRoomConfig(config protocol.RoomConfig) bool {
	if config.ChairCount == 0 || config.ChairCount > maxChairs || config.BotCount >= config.ChairCount {
		return false
	}
	if len(config.Rounds) == 0 || len(config.Rounds) > maxRounds {
		return false
	}
	for _, round := range config.Rounds {
		if round.BoosterRoundConfig == nil || len(round.BoosterRoundConfig.CardBundles) == 0 {
			return false
		}
	}
	return true
}

func (ss *SimServer) roomNameInUse(name string) bool {
	for _, r := range ss.rooms {
		if r.config.Name == name {
			return true
		}
	}
	return false
}

func (ss *SimServer) handleCreateRoomReq(c *client, req *protocol.CreateRoomReq) error {
	result := protocol.CreateRoomResultSuccess
	switch {
	case ss.roomNameInUse(req.RoomConfig.Name):
		result = protocol.CreateRoomResultFailureNameInUse
	case c.room != nil || !validRoomConfig(req.RoomConfig):
		result = protocol.CreateRoomResultFailureInvalidConfig
	case len(ss.rooms) >= ss.cfg.MaxRooms:
		result = protocol.CreateRoomResultFailureTooManyRooms
	}
	if result != protocol.CreateRoomResultSuccess {
		return ss.sendMsg(c, &protocol.CreateRoomFailureRsp{Result: result})
	}

	r := newRoom(ss.nextRoomID, req.RoomConfig)
	ss.nextRoomID++
	ss.rooms[r.id] = r
	ss.roomsCreated.Add(1)

	ss.logger.Info().
		Str("client", c.name).
		Uint32("room", r.id).
		Str("name", r.config.Name).
		Msg("room created")

	var errs error
	if err := ss.sendMsg(c, &protocol.CreateRoomSuccessRsp{RoomID: r.id}); err != nil {
		errs = multierror.Append(errs, err)
	}
	err := ss.broadcast(&protocol.RoomsInfoInd{
		AddedRooms:   []protocol.RoomInfo{r.info()},
		PlayerCounts: []protocol.RoomPlayerCount{r.playerCount()},
	})
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

func (ss *SimServer) handleJoinRoomReq(c *client, req *protocol.JoinRoomReq) error {
	r, ok := ss.rooms[req.RoomID]

	result := protocol.JoinRoomResultSuccess
	switch {
	case !ok || c.room != nil:
		result = protocol.JoinRoomResultFailureInvalidRoom
	case r.config.PasswordProtected && req.Password == "":
		result = protocol.JoinRoomResultFailureInvalidPassword
	case r.started || r.full():
		result = protocol.JoinRoomResultFailureRoomFull
	}
	if result != protocol.JoinRoomResultSuccess {
		return ss.sendMsg(c, &protocol.JoinRoomFailureRsp{Result: result, RoomID: req.RoomID})
	}

	chair := 0
	for r.chairs[chair] != nil {
		chair++
	}
	r.chairs[chair] = c
	c.room = r

	ss.logger.Info().
		Str("client", c.name).
		Uint32("room", r.id).
		Int("chair", chair).
		Msg("joined room")

	var errs error
	err := ss.sendMsg(c, &protocol.JoinRoomSuccessRspInd{RoomID: r.id, ChairIndex: uint32(chair)})
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	err = ss.broadcast(&protocol.RoomsInfoInd{
		PlayerCounts: []protocol.RoomPlayerCount{r.playerCount()},
	})
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

func (ss *SimServer) handlePlayerReadyInd(c *client, ind *protocol.PlayerReadyInd) error {
	r := c.room
	if r == nil || r.started {
		return nil
	}

	r.ready[c] = ind.Ready
	if !r.allReady() {
		return nil
	}

	r.started = true
	ss.logger.Info().Uint32("room", r.id).Msg("draft started")

	var errs error
	for _, player := range r.players() {
		if err := ss.sendMsg(player, &protocol.RoomStageInd{}); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := ss.deal(r); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

// deal hands every seated player a fresh pack for the current pick.
func (ss *SimServer) deal(r *room) error {
	round := r.config.Rounds[r.round].BoosterRoundConfig
	size := ss.cfg.PackSize - r.pick

	var errs error
	for chair, c := range r.chairs {
		if c == nil {
			continue
		}

		bundle := round.CardBundles[chair%len(round.CardBundles)]
		p := pack{id: ss.nextPackID, cards: make([]protocol.Card, size)}
		ss.nextPackID++
		for i := range p.cards {
			p.cards[i] = protocol.Card{
				Name:    fmt.Sprintf("%s card %d-%d", bundle.SetCode, p.id, i),
				SetCode: bundle.SetCode,
			}
		}
		r.pending[c] = p

		if err := ss.sendMsg(c, &protocol.PlayerCurrentPackInd{PackID: p.id, Cards: p.cards}); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (ss *SimServer) handlePlayerCardSelectionReq(c *client, req *protocol.PlayerCardSelectionReq) error {
	r := c.room
	if r == nil || !r.started {
		return nil
	}

	p, ok := r.pending[c]
	if !ok || p.id != req.PackID {
		return fmt.Errorf("pick from unexpected pack %d", req.PackID)
	}
	found := false
	for _, card := range p.cards {
		if card == req.Card {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("card %q is not in pack %d", req.Card.Name, p.id)
	}

	delete(r.pending, c)
	ss.picks.Add(1)

	if len(r.pending) > 0 {
		return nil
	}
	return ss.advance(r)
}

// advance moves a room whose players have all picked to its next pick,
// next round, or the end of the draft.
func (ss *SimServer) advance(r *room) error {
	r.pick++
	if r.pick >= ss.cfg.Picks {
		r.pick = 0
		r.round++
	}
	if r.round < len(r.config.Rounds) {
		return ss.deal(r)
	}

	ss.logger.Info().Uint32("room", r.id).Msg("draft complete")
	ss.draftsCompleted.Add(1)

	var errs error
	for _, c := range r.players() {
		if err := ss.sendMsg(c, &protocol.RoomStageInd{Complete: true}); err != nil {
			errs = multierror.Append(errs, err)
		}
		c.room = nil
	}
	if err := ss.removeRoom(r); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

func (ss *SimServer) removeRoom(r *room) error {
	delete(ss.rooms, r.id)
	return ss.broadcast(&protocol.RoomsInfoInd{RemovedRooms: []uint32{r.id}})
}

// leaveRoom unseats a disconnecting client. a draft in progress carries on
// without it.
func (ss *SimServer) leaveRoom(c *client) {
	r := c.room
	c.room = nil

	for i := range r.chairs {
		if r.chairs[i] == c {
			r.chairs[i] = nil
		}
	}
	delete(r.ready, c)
	_, picking := r.pending[c]
	delete(r.pending, c)

	var err error
	switch {
	case len(r.players()) == 0:
		err = ss.removeRoom(r)
	case r.started && picking && len(r.pending) == 0:
		err = ss.advance(r)
	case !r.started:
		err = ss.broadcast(&protocol.RoomsInfoInd{
			PlayerCounts: []protocol.RoomPlayerCount{r.playerCount()},
		})
	}
	if err != nil {
		ss.logger.Error().Err(err).Uint32("room", r.id).Msg("could not update room after leave")
	}
}
