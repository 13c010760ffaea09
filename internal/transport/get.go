package transport

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/streamrelay/mcpstream/internal/httpadapter"
	"github.com/streamrelay/mcpstream/internal/telemetry"
	"github.com/streamrelay/mcpstream/pkg/eventstore"
	"github.com/streamrelay/mcpstream/pkg/jsonrpc"
)

// handleGet implements spec.md §4.6.2.
func (t *Transport) handleGet(req httpadapter.Request, resp httpadapter.Response) {
	ctx, span := telemetry.StartSpan(req.Context(), "mcpstream.get", req.Header(sessionIDHeader), "")
	defer span.End()

	if !acceptContains(req, "text/event-stream") {
		writeTransportError(resp, 406, jsonrpc.CodeTransportError, "Not Acceptable: Accept header must include text/event-stream", nil)
		return
	}
	if err := t.session.Validate(req.Header(sessionIDHeader)); err != nil {
		t.writeSessionError(resp, err)
		return
	}

	lastEventID := req.Header(lastEventIDHeader)
	if lastEventID != "" && t.opts.EventStore != nil {
		t.resumeStream(ctx, span, resp, lastEventID)
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: transport is closed", nil)
		return
	}
	if t.standaloneStream != "" {
		t.mu.Unlock()
		writeTransportError(resp, 409, jsonrpc.CodeTransportError, "Conflict: Only one SSE stream is allowed per session", nil)
		return
	}

	st := newStream(StandaloneStreamID, modeSSE, resp, nil)
	st.isStandalone = true
	t.streams[StandaloneStreamID] = st
	t.standaloneStream = StandaloneStreamID
	t.mu.Unlock()
	t.incActiveStreams()

	sid := t.SessionID()
	span.SetAttributes(attribute.String("stream.id", StandaloneStreamID))
	resp.SetStatus(200)
	resp.SetHeader("Content-Type", "text/event-stream")
	resp.SetHeader("Cache-Control", "no-cache, no-transform")
	resp.SetHeader("Connection", "keep-alive")
	if sid != "" {
		resp.SetHeader(sessionIDHeader, sid)
	}
	resp.Flush()
	t.armKeepAlive(st)
	t.watchDisconnect(st, resp)
}

// resumeStream implements the Last-Event-ID branch of spec.md §4.6.2 step
// 3, replaying stored events before the resumed connection takes over as
// the session's standalone stream.
func (t *Transport) resumeStream(ctx context.Context, span trace.Span, resp httpadapter.Response, lastEventID string) {
	streamID, _, err := eventstore.ParseEventID(lastEventID)
	if err != nil {
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: malformed Last-Event-ID", nil)
		return
	}
	span.SetAttributes(attribute.String("stream.id", streamID))

	events, err := t.opts.EventStore.ReplayAfter(ctx, streamID, lastEventID)
	if err != nil && err != eventstore.ErrStreamNotFound {
		t.emitError(err)
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: replay failed", nil)
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: transport is closed", nil)
		return
	}
	if t.standaloneStream != "" && t.standaloneStream != streamID {
		t.mu.Unlock()
		writeTransportError(resp, 409, jsonrpc.CodeTransportError, "Conflict: Only one SSE stream is allowed per session", nil)
		return
	}

	st, exists := t.streams[streamID]
	if !exists {
		st = newStream(streamID, modeSSE, resp, nil)
	}
	st.isStandalone = true
	st.rebindResponse(resp)
	t.streams[streamID] = st
	t.standaloneStream = streamID
	t.mu.Unlock()
	if !exists {
		t.incActiveStreams()
	}

	sid := t.SessionID()
	resp.SetStatus(200)
	resp.SetHeader("Content-Type", "text/event-stream")
	resp.SetHeader("Cache-Control", "no-cache, no-transform")
	resp.SetHeader("Connection", "keep-alive")
	if sid != "" {
		resp.SetHeader(sessionIDHeader, sid)
	}
	resp.Flush()

	for _, ev := range events {
		if err := st.sseW.WriteEvent(ev.ID, ev.Data); err != nil {
			t.dropStream(st.id)
			return
		}
		t.recordSSEFrame(st)
	}

	t.armKeepAlive(st)
	t.watchDisconnect(st, resp)
}
