// Package eventstore defines the resumability contract used by the
// streamable HTTP transport's SSE streams (spec.md §4.4): every event
// written to a stream is appended to a store keyed by stream, so a
// reconnecting client can replay everything it missed by supplying the
// last event ID it saw.
package eventstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrStreamNotFound is returned by ReplayAfter when the store has no
// record of the given stream at all (as opposed to the given event ID
// simply not existing within a known stream).
var ErrStreamNotFound = errors.New("eventstore: stream not found")

// Event is one durable, ordered record within a stream.
type Event struct {
	// ID is the opaque, monotonically increasing identifier a client
	// echoes back via the Last-Event-ID header to resume. The bundled
	// stores build it with FormatEventID, and the transport parses it with
	// ParseEventID to find the stream to resume.
	ID string
	// StreamID identifies the SSE stream (a UUID minted per spec.md §3,
	// or the reserved GET-stream identifier) the event belongs to.
	StreamID string
	// Data is the exact JSON-RPC message bytes that were framed as this
	// event's "data:" field.
	Data []byte
}

// Store is the resumability port every event-store adapter implements.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append records data as the next event of stream and returns the
	// event ID assigned to it. Event IDs are monotonically increasing
	// within a stream (spec.md §4.4 invariant).
	Append(ctx context.Context, streamID string, data []byte) (Event, error)

	// ReplayAfter returns, in order, every event of stream recorded after
	// afterID. An empty afterID means "replay the whole stream" (used
	// when a stream is claimed for resumption at its very start). It
	// returns ErrStreamNotFound if the store has never seen streamID.
	ReplayAfter(ctx context.Context, streamID string, afterID string) ([]Event, error)

	// Forget releases any resources the store holds for stream, called
	// once a stream is permanently closed and cannot be resumed again
	// (spec.md §4.6.6). Implementations may retain history for a grace
	// window rather than deleting eagerly; Forget is advisory.
	Forget(ctx context.Context, streamID string) error

	// Close releases any resources held by the store itself (open
	// database handles, background compaction goroutines).
	Close() error
}

// FormatEventID renders the reserved "<streamID>-<sequence>" event ID
// format shared by the bundled memory and SQLite stores (SPEC_FULL.md
// "SUPPLEMENTED FEATURES" item 2), so a client's Last-Event-ID
// unambiguously names both stream and position.
func FormatEventID(streamID string, sequence uint64) string {
	return fmt.Sprintf("%s-%d", streamID, sequence)
}

// ParseEventID splits an event ID produced by FormatEventID back into its
// stream ID and sequence number. It returns an error if id was not
// produced by this format, which a caller treats as an invalid
// Last-Event-ID (spec.md §6: malformed resumption input is a client
// error, not a crash).
func ParseEventID(id string) (streamID string, sequence uint64, err error) {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] != '-' {
			continue
		}
		streamID = id[:i]
		if streamID == "" {
			break
		}
		var n uint64
		if _, scanErr := fmt.Sscanf(id[i+1:], "%d", &n); scanErr != nil {
			break
		}
		return streamID, n, nil
	}
	return "", 0, fmt.Errorf("eventstore: malformed event id %q", id)
}
