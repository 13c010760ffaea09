// Package memory implements an in-memory eventstore.Store, the default
// backend the transport uses when no durable store is configured
// (spec.md §1 Non-goals: "in-memory implementations are sufficient").
// It follows the same guarded-map-plus-mutex shape as the teacher's
// internal/domain/session in-memory store.
package memory

import (
	"context"
	"sync"

	"github.com/streamrelay/mcpstream/pkg/eventstore"
)

// Store is a process-local, non-durable eventstore.Store. All state is
// lost on restart; the SQLite-backed adapter exists for operators who
// need resumability to survive that.
type Store struct {
	mu      sync.Mutex
	streams map[string]*streamLog
}

type streamLog struct {
	events []eventstore.Event
	next   uint64
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{streams: make(map[string]*streamLog)}
}

// Append implements eventstore.Store.
func (s *Store) Append(_ context.Context, streamID string, data []byte) (eventstore.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.streams[streamID]
	if !ok {
		log = &streamLog{}
		s.streams[streamID] = log
	}

	ev := eventstore.Event{
		ID:       eventstore.FormatEventID(streamID, log.next),
		StreamID: streamID,
		Data:     append([]byte(nil), data...),
	}
	log.next++
	log.events = append(log.events, ev)
	return ev, nil
}

// ReplayAfter implements eventstore.Store.
func (s *Store) ReplayAfter(_ context.Context, streamID string, afterID string) ([]eventstore.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.streams[streamID]
	if !ok {
		return nil, eventstore.ErrStreamNotFound
	}
	if afterID == "" {
		out := make([]eventstore.Event, len(log.events))
		copy(out, log.events)
		return out, nil
	}

	for i, ev := range log.events {
		if ev.ID == afterID {
			out := make([]eventstore.Event, len(log.events)-i-1)
			copy(out, log.events[i+1:])
			return out, nil
		}
	}
	// afterID not found in this stream's history: replay everything we
	// still have rather than fail outright, matching the reference
	// implementation's forgiving resumption behavior when history has
	// been trimmed but the stream itself is known.
	out := make([]eventstore.Event, len(log.events))
	copy(out, log.events)
	return out, nil
}

// Forget implements eventstore.Store by dropping the stream's history.
func (s *Store) Forget(_ context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, streamID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
