// Package orchestrator spawns and supervises a fleet of simulated sessions.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"

	"github.com/mildmongrel/thicket/internal/session"
)

type Config struct {
	Network    string
	Address    string
	Count      int
	NamePrefix string
	// sessions start at random offsets in [0, StaggerMax) from each other
	// so they do not all race to create rooms at once.
	StaggerMax time.Duration

	Session session.Config
}

type Option func(*Orchestrator)

// WithObserver adds an observer that is told about every session's state
// transitions. observers are called from session goroutines.
func WithObserver(observer session.Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, observer) }
}

// WithSessionOptions passes opts to every session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *Orchestrator) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

type Orchestrator struct {
	cfg    Config
	logger *log.Logger

	observers   []session.Observer
	sessionOpts []session.Option
	rng         *rand.Rand

	mu       sync.RWMutex
	sessions []*session.Session
}

func New(cfg Config, logger *log.Logger, opts ...Option) *Orchestrator {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	if cfg.Network == "" {
		cfg.Network = "tcp"
	}

	o := &Orchestrator{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return o
}

// SessionName returns the display name of the i-th session.
func (o *Orchestrator) SessionName(i int) string {
	return fmt.Sprintf("%s%04d", o.cfg.NamePrefix, i)
}

// Run spawns the configured number of sessions and waits until every one of
// them has stopped. cancelling ctx stops spawning and closes the
// connections of the sessions already running.
//
// the returned error aggregates the errors of failed or lost sessions.
func (o *Orchestrator) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)

	opts := append([]session.Option(nil), o.sessionOpts...)
	if len(o.observers) > 0 {
		opts = append(opts, session.WithObserver(fanout(o.observers)))
	}

	o.logger.Info().
		Str("addr", o.cfg.Address).
		Int("count", o.cfg.Count).
		Dur("stagger_max", o.cfg.StaggerMax).
		Msg("spawning sessions")

spawn:
	for i := 0; i < o.cfg.Count; i++ {
		if i > 0 && o.cfg.StaggerMax > 0 {
			delay := time.Duration(o.rng.Int63n(int64(o.cfg.StaggerMax)))
			select {
			case <-ctx.Done():
				o.logger.Info().Int("spawned", i).Msg("cancelled while spawning")
				break spawn
			case <-time.After(delay):
			}
		}

		s := session.New(o.SessionName(i), o.cfg.Network, o.cfg.Address, o.cfg.Session, o.logger, opts...)

		o.mu.Lock()
		o.sessions = append(o.sessions, s)
		o.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := s.Run(ctx); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	o.logger.Info().Msg("all sessions stopped")
	return errs
}

// Sessions returns the sessions spawned so far, in spawn order.
func (o *Orchestrator) Sessions() []*session.Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]*session.Session(nil), o.sessions...)
}

func (o *Orchestrator) Snapshots() []session.Snapshot {
	sessions := o.Sessions()
	snaps := make([]session.Snapshot, len(sessions))
	for i, s := range sessions {
		snaps[i] = s.Snapshot()
	}
	return snaps
}

type fanout []session.Observer

func (f fanout) StateChanged(snap session.Snapshot) {
	for _, observer := range f {
		observer.StateChanged(snap)
	}
}
