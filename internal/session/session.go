// Package session runs one simulated draft client: it connects, logs in,
// finds or creates a room, drafts, and leaves.
//
// A session is two goroutines. The receive pump only decodes frames into the
// mailbox; the action loop owns every piece of session state and is the
// only writer on the connection.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/mildmongrel/thicket/internal/debug"
	"github.com/mildmongrel/thicket/internal/framing"
	"github.com/mildmongrel/thicket/internal/protocol"
)

var (
	ErrLoginFailed    = errors.New("login failed")
	ErrConnectionLost = errors.New("connection lost")
)

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Observer is told about every state transition. it is called from the
// action loop and must not block.
type Observer interface {
	StateChanged(snap Snapshot)
}

type Option func(*Session)

func WithDialer(dialer Dialer) Option {
	return func(s *Session) { s.dialer = dialer }
}

// WithClock replaces time.Now for the state machine.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

func WithObserver(observer Observer) Option {
	return func(s *Session) { s.observer = observer }
}

type Session struct {
	name    string
	network string
	address string
	cfg     Config

	dialer   Dialer
	logger   *log.Logger
	now      func() time.Time
	rng      *rand.Rand
	observer Observer

	conn      net.Conn
	closeOnce sync.Once
	mailbox   *Mailbox

	// lost is closed by the receive pump when it stops; readErr is written
	// before that.
	lost    chan struct{}
	readErr error
	// done is closed once the session reaches a terminal state.
	done     chan struct{}
	finished atomic.Bool
	err      error

	// owned by the action loop
	state         State
	rooms         *RoomView
	timers        timers
	joinSent      bool
	createSent    bool
	roomsCreated  int
	inRoom        bool
	draftStarted  bool
	enteredRoomAt time.Time

	// published for concurrent readers
	publishedState atomic.Int32
	roomID         atomic.Uint32
	errMsg         atomic.Value
	startedAt      atomic.Int64
	endedAt        atomic.Int64
	sent           atomic.Int64
	received       atomic.Int64
	keepAlives     atomic.Int64
	chats          atomic.Int64
	picks          atomic.Int64
}

func New(name, network, address string, cfg Config, logger *log.Logger, opts ...Option) *Session {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	sessionLogger := *logger
	sessionLogger.Context = log.NewContext(nil).Str("session", name).Value()

	s := &Session{
		name:    name,
		network: network,
		address: address,
		cfg:     cfg,

		dialer: &net.Dialer{Timeout: cfg.DialTimeout},
		logger: &sessionLogger,
		now:    time.Now,

		mailbox: NewMailbox(),
		lost:    make(chan struct{}),
		done:    make(chan struct{}),

		state:  StateConnecting,
		rooms:  NewRoomView(),
		timers: newTimers(cfg),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rng == nil {
		seed := int64(xxhash.Sum64String(name)) ^ time.Now().UnixNano()
		s.rng = rand.New(rand.NewSource(seed))
	}

	return s
}

func (s *Session) Name() string {
	return s.name
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run connects and drives the session until it reaches a terminal state or
// ctx is cancelled. it returns nil for a session that completed normally or
// was cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.startedAt.Store(time.Now().UnixNano())
	s.publish()

	conn, err := s.dialer.DialContext(ctx, s.network, s.address)
	if err != nil {
		if ctx.Err() != nil {
			s.finish(StateComplete, nil)
			return nil
		}
		s.finish(StateFailed, fmt.Errorf("could not dial %s: %w", s.address, err))
		return s.err
	}
	s.attach(conn)
	s.logger.Debug().Str("addr", s.address).Msg("connected")

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.runRecv()
		return nil
	})
	group.Go(func() error {
		s.runActions(ctx)
		return nil
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
		case <-s.done:
		}
		s.closeConn()
		return nil
	})

	_ = group.Wait()
	return s.err
}

// attach hands an established connection to the session.
func (s *Session) attach(conn net.Conn) {
	s.conn = conn
	s.setState(StateAwaitingGreeting)
}

func (s *Session) runRecv() {
	defer close(s.lost)

	reader := bufio.NewReader(s.conn)
	for !s.finished.Load() {
		msg, err := framing.DecodeServerMsg(reader)
		if err != nil {
			if framing.Skippable(err) {
				s.logger.Warn().Err(err).Msg("dropping frame")
				continue
			}
			s.readErr = err
			return
		}

		s.received.Add(1)
		s.mailbox.Push(msg)
	}
}

func (s *Session) runActions(ctx context.Context) {
	for !s.state.Terminal() {
		s.tick(s.now())
		if s.state.Terminal() {
			return
		}

		msg, ok := s.mailbox.Pop(s.cfg.TickInterval)
		if ok {
			s.handle(msg, s.now())
			continue
		}

		// the mailbox is drained, so nothing the server sent before the
		// connection went away is lost
		select {
		case <-s.lost:
			s.connectionLost(ctx)
		default:
		}
	}
}

func (s *Session) connectionLost(ctx context.Context) {
	if ctx.Err() != nil {
		s.logger.Debug().Msg("cancelled")
		s.finish(StateComplete, nil)
		return
	}

	err := s.readErr
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	s.logger.Warn().Err(err).Str("state", s.state.String()).Msg("connection lost")
	s.finish(StateComplete, fmt.Errorf("%w: %v", ErrConnectionLost, err))
}

func (s *Session) send(msg protocol.ClientMsg) {
	data, err := framing.EncodeClientMsg(msg)
	debug.Assert(err == nil)

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.SendTimeout))
	if _, err := s.conn.Write(data); err != nil {
		// the pump notices the closed connection and the loop finishes
		// the session from there
		s.logger.Error().Err(err).Str("msg", protocol.Name(msg)).Msg("could not write")
		s.closeConn()
		return
	}

	s.sent.Add(1)
	s.logger.Debug().Str("msg", protocol.Name(msg)).Msg("sent")
}

func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// finish moves the session to a terminal state exactly once.
func (s *Session) finish(state State, err error) {
	debug.Assert(state.Terminal())
	if s.state.Terminal() {
		return
	}

	s.err = err
	if err != nil {
		s.errMsg.Store(err.Error())
	}
	s.endedAt.Store(time.Now().UnixNano())
	s.finished.Store(true)
	s.setState(state)

	s.closeConn()
	close(s.done)
}

func (s *Session) setState(state State) {
	if s.state != state {
		s.logger.Info().
			Str("from", s.state.String()).
			Str("to", state.String()).
			Msg("state")
	}
	s.state = state
	s.publish()
}

func (s *Session) publish() {
	s.publishedState.Store(int32(s.state))
	if s.observer != nil {
		s.observer.StateChanged(s.Snapshot())
	}
}

// Snapshot is a point-in-time view of a session, safe to take from any
// goroutine.
type Snapshot struct {
	Name       string    `json:"name"`
	State      State     `json:"state"`
	RoomID     uint32    `json:"room_id,omitempty"`
	Sent       int64     `json:"sent"`
	Received   int64     `json:"received"`
	KeepAlives int64     `json:"keep_alives"`
	Chats      int64     `json:"chats"`
	Picks      int64     `json:"picks"`
	Err        string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

func (snap Snapshot) Duration() time.Duration {
	if snap.StartedAt.IsZero() || snap.EndedAt.IsZero() {
		return 0
	}
	return snap.EndedAt.Sub(snap.StartedAt)
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Name:       s.name,
		State:      State(s.publishedState.Load()),
		RoomID:     s.roomID.Load(),
		Sent:       s.sent.Load(),
		Received:   s.received.Load(),
		KeepAlives: s.keepAlives.Load(),
		Chats:      s.chats.Load(),
		Picks:      s.picks.Load(),
	}
	if msg, ok := s.errMsg.Load().(string); ok {
		snap.Err = msg
	}
	if ns := s.startedAt.Load(); ns != 0 {
		snap.StartedAt = time.Unix(0, ns)
	}
	if ns := s.endedAt.Load(); ns != 0 {
		snap.EndedAt = time.Unix(0, ns)
	}
	return snap
}
