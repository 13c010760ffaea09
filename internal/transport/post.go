package transport

import (
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/streamrelay/mcpstream/internal/httpadapter"
	"github.com/streamrelay/mcpstream/internal/session"
	"github.com/streamrelay/mcpstream/internal/telemetry"
	"github.com/streamrelay/mcpstream/pkg/jsonrpc"
)

// maxRequestBodyBytes bounds POST body reads, matching the teacher's own
// 1 MB ceiling in internal/adapter/inbound/http/handler.go.
const maxRequestBodyBytes = 1 << 20

// handlePost implements spec.md §4.6.1.
func (t *Transport) handlePost(req httpadapter.Request, resp httpadapter.Response) {
	_, span := telemetry.StartSpan(req.Context(), "mcpstream.post", req.Header(sessionIDHeader), "")
	defer span.End()

	if !acceptContains(req, "application/json") || !acceptContains(req, "text/event-stream") {
		writeTransportError(resp, 406, jsonrpc.CodeTransportError, "Not Acceptable: Accept header must include application/json and text/event-stream", nil)
		return
	}

	mimeType, _ := req.ContentType()
	if mimeType != "application/json" {
		writeTransportError(resp, 415, jsonrpc.CodeTransportError, "Unsupported Media Type: Content-Type must be application/json", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body(), maxRequestBodyBytes+1))
	if err != nil {
		writeTransportError(resp, 400, jsonrpc.CodeParseError, "Parse error: failed to read request body", nil)
		return
	}
	if len(body) > maxRequestBodyBytes {
		writeTransportError(resp, 400, jsonrpc.CodeParseError, "Parse error: request body too large", nil)
		return
	}

	msgs, _, err := jsonrpc.ParseBatch(body)
	if err != nil {
		writeTransportError(resp, 400, jsonrpc.CodeParseError, fmt.Sprintf("Parse error: %v", err), nil)
		return
	}

	hasInit := false
	for _, m := range msgs {
		if m.IsInitializeRequest() {
			hasInit = true
			break
		}
	}

	var sessionIDForResponse string
	if hasInit {
		sid, err := t.session.Initialize(len(msgs))
		if err != nil {
			writeInitError(resp, err)
			return
		}
		sessionIDForResponse = sid
		span.SetAttributes(attribute.String("session.id", sid))
	} else {
		if err := t.session.Validate(req.Header(sessionIDHeader)); err != nil {
			t.writeSessionError(resp, err)
			return
		}
		sessionIDForResponse = t.SessionID()
	}

	if t.idle != nil {
		t.idle.StartPOST()
		defer t.idle.EndPOST()
	}

	requests := make([]*jsonrpc.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsRequest() {
			requests = append(requests, m)
		}
	}

	if len(requests) == 0 {
		resp.SetStatus(202)
		if sessionIDForResponse != "" {
			resp.SetHeader(sessionIDHeader, sessionIDForResponse)
		}
		resp.Close()
		for _, m := range msgs {
			t.dispatchMessage(m)
		}
		return
	}

	streamID := newStreamID()
	span.SetAttributes(attribute.String("stream.id", streamID))
	jsonMode := t.opts.EnableJSONResponse

	mode := modeSSE
	if jsonMode {
		mode = modeJSON
	}
	st := newStream(streamID, mode, resp, requests)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: transport is closed", nil)
		return
	}
	t.streams[streamID] = st
	for id := range st.expected {
		t.requestToStream[id] = streamID
	}
	t.mu.Unlock()
	t.incActiveStreams()

	if mode == modeSSE {
		resp.SetStatus(200)
		resp.SetHeader("Content-Type", "text/event-stream")
		resp.SetHeader("Cache-Control", "no-cache, no-transform")
		resp.SetHeader("Connection", "keep-alive")
		if sessionIDForResponse != "" {
			resp.SetHeader(sessionIDHeader, sessionIDForResponse)
		}
		resp.Flush()
		t.armKeepAlive(st)
		t.watchDisconnect(st, resp)
	} else {
		resp.SetStatus(200)
		if sessionIDForResponse != "" {
			resp.SetHeader(sessionIDHeader, sessionIDForResponse)
		}
		// Headers are buffered; nothing is written until Send completes
		// every correlated response (spec.md §4.6.1 step 7, JSON mode).
	}

	for _, m := range msgs {
		t.dispatchMessage(m)
	}
}

// dispatchMessage fans a classified message out to the upper layer,
// outside of any lock (spec.md §9 "no on_message invocation while
// holding the map lock").
func (t *Transport) dispatchMessage(m *jsonrpc.Message) {
	if t.opts.OnMessage != nil {
		t.opts.OnMessage(m)
	}
}

func writeInitError(resp httpadapter.Response, err error) {
	switch {
	case errors.Is(err, session.ErrAlreadyInitialized):
		writeTransportError(resp, 400, jsonrpc.CodeInvalidRequest, "Invalid Request: server already initialized", nil)
	case errors.Is(err, session.ErrBatchMustBeSingleton):
		writeTransportError(resp, 400, jsonrpc.CodeInvalidRequest, "Invalid Request: initialize request must be the only message in its batch", nil)
	default:
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, fmt.Sprintf("Bad Request: %v", err), nil)
	}
}

func (t *Transport) writeSessionError(resp httpadapter.Response, err error) {
	switch {
	case errors.Is(err, session.ErrNotInitialized):
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: Server not initialized", nil)
	case errors.Is(err, session.ErrMissingSessionID):
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: Mcp-Session-Id header is required", nil)
	case errors.Is(err, session.ErrSessionNotFound):
		writeTransportError(resp, 404, jsonrpc.CodeSessionNotFound, "Session not found", nil)
	default:
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request", nil)
	}
}
