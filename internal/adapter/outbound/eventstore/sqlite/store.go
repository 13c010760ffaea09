// Package sqlite implements a durable eventstore.Store backed by
// modernc.org/sqlite, the pure-Go SQLite driver the teacher lists as a
// dependency but never wires into any running code. This adapter gives
// it a job: SSE stream history that survives a process restart, for
// operators who need resumption to outlive a redeploy.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/streamrelay/mcpstream/pkg/eventstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS stream_events (
	stream_id TEXT NOT NULL,
	sequence  INTEGER NOT NULL,
	event_id  TEXT NOT NULL,
	data      BLOB NOT NULL,
	PRIMARY KEY (stream_id, sequence)
);
CREATE TABLE IF NOT EXISTS stream_cursors (
	stream_id TEXT PRIMARY KEY,
	next_seq  INTEGER NOT NULL
);
`

// Store is a database/sql-backed eventstore.Store. Multiple *Store values
// may share the same DSN safely; sequence allocation is done under a
// SQL transaction rather than in-process locking, so this store also
// works correctly if a future revision runs several transport processes
// against one file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at dsn and
// prepares its schema. dsn is passed straight to database/sql; a bare
// file path or "file::memory:?cache=shared" both work.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventstore/sqlite: open: %w", err)
	}
	// modernc.org/sqlite serializes writes at the connection level; a
	// single connection avoids "database is locked" errors under
	// concurrent Append calls from multiple streams.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore/sqlite: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append implements eventstore.Store.
func (s *Store) Append(ctx context.Context, streamID string, data []byte) (eventstore.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eventstore.Event{}, fmt.Errorf("eventstore/sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var next uint64
	err = tx.QueryRowContext(ctx, `SELECT next_seq FROM stream_cursors WHERE stream_id = ?`, streamID).Scan(&next)
	switch {
	case err == sql.ErrNoRows:
		next = 0
		if _, err := tx.ExecContext(ctx, `INSERT INTO stream_cursors (stream_id, next_seq) VALUES (?, ?)`, streamID, uint64(1)); err != nil {
			return eventstore.Event{}, fmt.Errorf("eventstore/sqlite: insert cursor: %w", err)
		}
	case err != nil:
		return eventstore.Event{}, fmt.Errorf("eventstore/sqlite: read cursor: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE stream_cursors SET next_seq = ? WHERE stream_id = ?`, next+1, streamID); err != nil {
			return eventstore.Event{}, fmt.Errorf("eventstore/sqlite: update cursor: %w", err)
		}
	}

	eventID := eventstore.FormatEventID(streamID, next)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stream_events (stream_id, sequence, event_id, data) VALUES (?, ?, ?, ?)`,
		streamID, next, eventID, data,
	); err != nil {
		return eventstore.Event{}, fmt.Errorf("eventstore/sqlite: insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return eventstore.Event{}, fmt.Errorf("eventstore/sqlite: commit: %w", err)
	}

	return eventstore.Event{ID: eventID, StreamID: streamID, Data: data}, nil
}

// ReplayAfter implements eventstore.Store.
func (s *Store) ReplayAfter(ctx context.Context, streamID string, afterID string) ([]eventstore.Event, error) {
	var known bool
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM stream_cursors WHERE stream_id = ?`, streamID).Scan(&known); err != nil {
		if err == sql.ErrNoRows {
			return nil, eventstore.ErrStreamNotFound
		}
		return nil, fmt.Errorf("eventstore/sqlite: check stream: %w", err)
	}

	afterSeq := int64(-1)
	if afterID != "" {
		_, seq, err := eventstore.ParseEventID(afterID)
		if err == nil {
			afterSeq = int64(seq)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, data FROM stream_events WHERE stream_id = ? AND sequence > ? ORDER BY sequence ASC`,
		streamID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("eventstore/sqlite: query events: %w", err)
	}
	defer rows.Close()

	var out []eventstore.Event
	for rows.Next() {
		var ev eventstore.Event
		if err := rows.Scan(&ev.ID, &ev.Data); err != nil {
			return nil, fmt.Errorf("eventstore/sqlite: scan event: %w", err)
		}
		ev.StreamID = streamID
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Forget implements eventstore.Store by deleting stream's persisted
// history and cursor.
func (s *Store) Forget(ctx context.Context, streamID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stream_events WHERE stream_id = ?`, streamID); err != nil {
		return fmt.Errorf("eventstore/sqlite: delete events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stream_cursors WHERE stream_id = ?`, streamID); err != nil {
		return fmt.Errorf("eventstore/sqlite: delete cursor: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
