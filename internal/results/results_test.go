package results_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/mildmongrel/thicket/internal/results"
	"github.com/mildmongrel/thicket/internal/session"
)

func TestRecordAndReadBack(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	rec, err := results.Open(filepath.Join(t.TempDir(), "results.db"), nil)
	is.NoErr(err)
	defer rec.Close()

	start := time.Unix(1700000000, 0)
	runID, err := rec.StartRun(ctx, "127.0.0.1:53333", 2, start)
	is.NoErr(err)
	is.True(runID > 0)

	snaps := []session.Snapshot{
		{
			Name: "sim_0000", State: session.StateComplete, RoomID: 4,
			Sent: 9, Received: 11, KeepAlives: 2, Chats: 1, Picks: 6,
			StartedAt: start, EndedAt: start.Add(time.Minute),
		},
		{
			Name: "sim_0001", State: session.StateFailed,
			Sent: 1, Received: 2, Err: "login failed: result 2",
			StartedAt: start,
		},
	}
	is.NoErr(rec.RecordSessions(ctx, runID, snaps))

	got, err := rec.Sessions(ctx, runID)
	is.NoErr(err)
	is.Equal(len(got), 2)
	for i := range got {
		is.Equal(got[i].Name, snaps[i].Name)
		is.Equal(got[i].State, snaps[i].State)
		is.Equal(got[i].RoomID, snaps[i].RoomID)
		is.Equal(got[i].Picks, snaps[i].Picks)
		is.Equal(got[i].Err, snaps[i].Err)
		is.True(got[i].StartedAt.Equal(snaps[i].StartedAt))
		is.True(got[i].EndedAt.Equal(snaps[i].EndedAt))
	}

	// a second run keeps its own rows
	otherRun, err := rec.StartRun(ctx, "127.0.0.1:53333", 0, start)
	is.NoErr(err)
	got, err = rec.Sessions(ctx, otherRun)
	is.NoErr(err)
	is.Equal(len(got), 0)

	// names are unique within a run
	is.True(rec.RecordSessions(ctx, runID, snaps[:1]) != nil)
}
