package orchestrator_test

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matryer/is"

	"github.com/mildmongrel/thicket/internal/orchestrator"
	"github.com/mildmongrel/thicket/internal/session"
)

var errRefused = errors.New("refused")

type refusingDialer struct{}

func (refusingDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return nil, errRefused
}

// blockingDialer never connects; it gives up when ctx is done.
type blockingDialer struct{}

func (blockingDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type countingObserver struct {
	mu     sync.Mutex
	states map[string][]session.State
}

func (o *countingObserver) StateChanged(snap session.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.states == nil {
		o.states = make(map[string][]session.State)
	}
	o.states[snap.Name] = append(o.states[snap.Name], snap.State)
}

func TestRunAggregatesSessionErrors(t *testing.T) {
	is := is.New(t)

	first, second := &countingObserver{}, &countingObserver{}
	orch := orchestrator.New(orchestrator.Config{
		Address:    "127.0.0.1:1",
		Count:      5,
		NamePrefix: "bot_",
		StaggerMax: time.Millisecond,
		Session:    session.DefaultConfig(),
	}, nil,
		orchestrator.WithSessionOptions(session.WithDialer(refusingDialer{})),
		orchestrator.WithObserver(first),
		orchestrator.WithObserver(second),
	)

	err := orch.Run(context.Background())
	is.True(errors.Is(err, errRefused))

	var merr *multierror.Error
	is.True(errors.As(err, &merr))
	is.Equal(len(merr.Errors), 5)

	snaps := orch.Snapshots()
	is.Equal(len(snaps), 5)

	names := make(map[string]bool)
	for i, snap := range snaps {
		is.Equal(snap.Name, orch.SessionName(i))
		is.Equal(snap.State, session.StateFailed)
		names[snap.Name] = true
	}
	is.Equal(len(names), 5) // distinct names
	is.True(names["bot_0000"])
	is.True(names["bot_0004"])

	for _, observer := range []*countingObserver{first, second} {
		is.Equal(len(observer.states), 5)
		for _, states := range observer.states {
			is.Equal(states, []session.State{session.StateConnecting, session.StateFailed})
		}
	}
}

func TestCancelStopsSpawning(t *testing.T) {
	is := is.New(t)

	orch := orchestrator.New(orchestrator.Config{
		Address:    "127.0.0.1:1",
		Count:      10,
		NamePrefix: "sim_",
		StaggerMax: time.Hour,
		Session:    session.DefaultConfig(),
	}, nil,
		orchestrator.WithSessionOptions(session.WithDialer(blockingDialer{})),
		orchestrator.WithRand(rand.New(rand.NewSource(1))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	is.NoErr(orch.Run(ctx)) // cancelled sessions are not errors
	is.True(time.Since(start) < time.Minute)

	sessions := orch.Sessions()
	is.Equal(len(sessions), 1)
	is.Equal(sessions[0].Snapshot().State, session.StateComplete)
}
