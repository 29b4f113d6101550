// Package results records run outcomes in a SQLite database so runs can be
// compared after the fact.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/phuslu/log"
	_ "modernc.org/sqlite"

	"github.com/mildmongrel/thicket/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	addr       TEXT    NOT NULL,
	count      INTEGER NOT NULL,
	started_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	name        TEXT    NOT NULL,
	state       TEXT    NOT NULL,
	room_id     INTEGER NOT NULL,
	sent        INTEGER NOT NULL,
	received    INTEGER NOT NULL,
	keep_alives INTEGER NOT NULL,
	chats       INTEGER NOT NULL,
	picks       INTEGER NOT NULL,
	error       TEXT    NOT NULL,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	PRIMARY KEY (run_id, name)
);
`

type Recorder struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens or creates the database at path. ":memory:" works for tests.
func Open(path string, logger *log.Logger) (*Recorder, error) {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open results db %s: %w", path, err)
	}

	// sqlite does not do concurrent writes; a single connection also keeps
	// ":memory:" databases alive for the recorder's lifetime
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logger.Warn().Err(err).Msg("could not enable wal mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		logger.Warn().Err(err).Msg("could not enable foreign keys")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}

	logger.Debug().Str("path", path).Msg("results db opened")

	return &Recorder{db: db, logger: logger}, nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

// StartRun registers a run and returns its id.
func (r *Recorder) StartRun(ctx context.Context, addr string, count int, startedAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO runs (addr, count, started_at) VALUES (?, ?, ?)",
		addr, count, startedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("could not insert run: %w", err)
	}
	return res.LastInsertId()
}

// RecordSessions stores the final snapshots of a run in one transaction.
func (r *Recorder) RecordSessions(ctx context.Context, runID int64, snaps []session.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (
			run_id, name, state, room_id, sent, received, keep_alives,
			chats, picks, error, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("could not prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range snaps {
		_, err := stmt.ExecContext(ctx,
			runID, snap.Name, snap.State.String(), snap.RoomID, snap.Sent,
			snap.Received, snap.KeepAlives, snap.Chats, snap.Picks, snap.Err,
			unixNano(snap.StartedAt), unixNano(snap.EndedAt))
		if err != nil {
			return fmt.Errorf("could not insert session %s: %w", snap.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit: %w", err)
	}

	r.logger.Info().Int64("run", runID).Int("sessions", len(snaps)).Msg("results recorded")
	return nil
}

// Sessions reads back the snapshots recorded for a run, ordered by name.
func (r *Recorder) Sessions(ctx context.Context, runID int64) ([]session.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, state, room_id, sent, received, keep_alives, chats,
			picks, error, started_at, ended_at
		FROM sessions WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query sessions: %w", err)
	}
	defer rows.Close()

	var snaps []session.Snapshot
	for rows.Next() {
		var (
			snap               session.Snapshot
			state              string
			startedAt, endedAt int64
		)
		err := rows.Scan(&snap.Name, &state, &snap.RoomID, &snap.Sent,
			&snap.Received, &snap.KeepAlives, &snap.Chats, &snap.Picks,
			&snap.Err, &startedAt, &endedAt)
		if err != nil {
			return nil, fmt.Errorf("could not scan session: %w", err)
		}
		if err := snap.State.UnmarshalText([]byte(state)); err != nil {
			return nil, err
		}
		snap.StartedAt = fromUnixNano(startedAt)
		snap.EndedAt = fromUnixNano(endedAt)

		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
