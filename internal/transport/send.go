package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamrelay/mcpstream/pkg/jsonrpc"
)

// ErrUnknownRoute is the internal invariant breach of spec.md §4.6.4 case
// 3: the upper layer produced a response for a request whose stream is
// gone.
var ErrUnknownRoute = fmt.Errorf("transport: no stream registered for request id")

// ErrResponseNeedsRequestID is the invariant breach of spec.md §3
// invariant 4: a response or error may never target the standalone
// stream.
var ErrResponseNeedsRequestID = fmt.Errorf("transport: response/error message must correlate to a request id")

// Send implements spec.md §4.6.4. relatedRequestID is ignored for
// response/error messages (their own ID is the routing key); it supplies
// the key for notifications and server-initiated requests, and may be
// empty to target the standalone stream.
func (t *Transport) Send(msg *jsonrpc.Message, relatedRequestID jsonrpc.ID) error {
	var key jsonrpc.ID
	if msg.IsResponse() || msg.IsError() {
		key = msg.ID
	} else {
		key = relatedRequestID
	}

	if !key.IsValid() {
		return t.sendStandalone(msg)
	}

	t.mu.Lock()
	streamID, ok := t.requestToStream[key]
	if !ok {
		t.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrUnknownRoute, key)
		t.emitError(err)
		return err
	}
	st := t.streams[streamID]
	t.mu.Unlock()
	if st == nil {
		err := fmt.Errorf("%w: %s", ErrUnknownRoute, key)
		t.emitError(err)
		return err
	}

	return t.sendToStream(st, msg, key)
}

func (t *Transport) sendStandalone(msg *jsonrpc.Message) error {
	if msg.IsResponse() || msg.IsError() {
		err := ErrResponseNeedsRequestID
		t.emitError(err)
		return err
	}

	t.mu.Lock()
	standaloneID := t.standaloneStream
	var st *stream
	if standaloneID != "" {
		st = t.streams[standaloneID]
	}
	t.mu.Unlock()

	if st == nil {
		return nil // no subscriber attached; dropping is permitted (spec.md §4.6.4 case 1).
	}

	data, err := msg.Encode()
	if err != nil {
		t.emitError(err)
		return err
	}
	eventID := t.assignEventID(standaloneID, data)
	if err := st.sseW.WriteEvent(eventID, data); err != nil {
		t.dropStream(standaloneID)
		return nil
	}
	t.recordSSEFrame(st)
	return nil
}

func (t *Transport) sendToStream(st *stream, msg *jsonrpc.Message, key jsonrpc.ID) error {
	data, err := msg.Encode()
	if err != nil {
		t.emitError(err)
		return err
	}

	isTerminal := msg.IsResponse() || msg.IsError()

	if st.mode == modeSSE {
		eventID := t.assignEventID(st.id, data)
		if err := st.sseW.WriteEvent(eventID, data); err != nil {
			t.dropStream(st.id)
			return nil
		}
		t.recordSSEFrame(st)
		if isTerminal {
			t.recordResultAndMaybeClose(st, key, data)
		}
		return nil
	}

	// JSON mode: only responses/errors are ever serialized into the final
	// buffered body (spec.md §4.6.4 case 2).
	if isTerminal {
		t.recordResultAndMaybeClose(st, key, data)
	}
	return nil
}

func (t *Transport) recordResultAndMaybeClose(st *stream, key jsonrpc.ID, data []byte) {
	t.mu.Lock()
	st.results[key] = data
	complete := st.complete()
	if complete {
		delete(t.streams, st.id)
		for id := range st.expected {
			delete(t.requestToStream, id)
		}
	}
	t.mu.Unlock()

	if !complete {
		return
	}

	t.decActiveStreams()
	st.stopKeepAlive()
	st.markDone()
	if st.mode == modeJSON {
		t.finalizeJSONResponse(st)
		return
	}
	if t.opts.EventStore != nil {
		_ = t.opts.EventStore.Forget(context.Background(), st.id)
	}
	st.resp.Close()
}

func (t *Transport) finalizeJSONResponse(st *stream) {
	bodies := make([]json.RawMessage, 0, len(st.order))
	for _, id := range st.order {
		if data, ok := st.results[id]; ok {
			bodies = append(bodies, data)
		}
	}

	body, err := jsonrpc.JoinBatch(bodies)
	if err != nil {
		t.emitError(fmt.Errorf("transport: join batch: %w", err))
		body = []byte("[]")
	}

	st.resp.SetHeader("Content-Type", "application/json")
	if sid := t.SessionID(); sid != "" {
		st.resp.SetHeader(sessionIDHeader, sid)
	}
	st.resp.Write(body)
	st.resp.Close()
}

// assignEventID appends data to the event store under streamID (if
// configured), returning the assigned id or "" if no store is
// configured (spec.md §4.4: "If no store is configured, SSE frames omit
// the id: line").
func (t *Transport) assignEventID(streamID string, data []byte) string {
	if t.opts.EventStore == nil {
		return ""
	}
	ev, err := t.opts.EventStore.Append(context.Background(), streamID, data)
	if err != nil {
		t.emitError(fmt.Errorf("transport: event store append: %w", err))
		return ""
	}
	t.recordEventAppended()
	return ev.ID
}

// dropStream tears down a stream after a write failure, treating it as a
// client disconnect (spec.md §7 "Transient I/O"). The stream's event-store
// history is kept so the client can resume it with Last-Event-ID.
func (t *Transport) dropStream(streamID string) {
	t.mu.Lock()
	st, ok := t.streams[streamID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.streams, streamID)
	if t.standaloneStream == streamID {
		t.standaloneStream = ""
	}
	for id, sid := range t.requestToStream {
		if sid == streamID {
			delete(t.requestToStream, id)
		}
	}
	t.mu.Unlock()

	t.decActiveStreams()
	st.stopKeepAlive()
	st.markDone()
}
