package simtest_test

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/phuslu/log"

	"github.com/mildmongrel/thicket/internal/orchestrator"
	"github.com/mildmongrel/thicket/internal/session"
	"github.com/mildmongrel/thicket/internal/simserver"
)

func TestFleetDraftsAgainstSimServer(t *testing.T) {
	is := is.New(t)

	logger := &log.DefaultLogger
	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Level = log.WarnLevel
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverCfg := simserver.DefaultConfig()
	serverCfg.Picks = 2
	serverCfg.PackSize = 4
	ss, err := simserver.NewSimServer("tcp", "127.0.0.1:0", serverCfg, logger)
	is.NoErr(err)
	go ss.Run(ctx)

	sessionCfg := session.DefaultConfig()
	sessionCfg.TickInterval = 20 * time.Millisecond
	sessionCfg.ChatCheckInterval = 50 * time.Millisecond
	sessionCfg.ChatAllProbability = 0.5
	sessionCfg.ChatRoomProbability = 0.5
	sessionCfg.DraftStartTimeout = 5 * time.Second
	sessionCfg.RoomChairCount = 4
	sessionCfg.RoomRounds = 2

	const count = 8
	orch := orchestrator.New(orchestrator.Config{
		Address:    ss.Addr().String(),
		Count:      count,
		NamePrefix: "sim_",
		StaggerMax: 100 * time.Millisecond,
		Session:    sessionCfg,
	}, logger)

	is.NoErr(orch.Run(ctx))

	snaps := orch.Snapshots()
	is.Equal(len(snaps), count)
	for _, snap := range snaps {
		is.Equal(snap.State, session.StateComplete)
		is.Equal(snap.Err, "")
		is.True(snap.Received > 0)
	}

	stats := ss.Stats()
	is.Equal(stats.Logins, int64(count))
	is.True(stats.RoomsCreated >= 2)
}
