// Package transport implements the streamable HTTP transport's core
// state machine (C6, spec.md §4.6): method dispatch, request-to-stream
// correlation, response routing over SSE or buffered JSON, keep-alive
// scheduling, and shutdown. It is the load-bearing 55% of the design and
// is deliberately kept free of any concrete HTTP stack, speaking only to
// the httpadapter.Request/Response contracts and to C2-C5 as
// collaborators.
package transport

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamrelay/mcpstream/internal/httpadapter"
	"github.com/streamrelay/mcpstream/internal/session"
	"github.com/streamrelay/mcpstream/internal/telemetry"
	"github.com/streamrelay/mcpstream/pkg/eventstore"
	"github.com/streamrelay/mcpstream/pkg/jsonrpc"
)

// StandaloneStreamID is the reserved stream id for the per-session
// standalone GET stream (spec.md §3).
const StandaloneStreamID = "_GET_stream"

const (
	sessionIDHeader       = "Mcp-Session-Id"
	protocolVersionHeader = "MCP-Protocol-Version"
	lastEventIDHeader     = "Last-Event-ID"
	defaultKeepAlive      = 25 * time.Second
)

var (
	// ErrTransportClosed is returned by Start once Close has been called.
	// HandleRequest answers requests on a closed transport with HTTP 400.
	ErrTransportClosed = errors.New("transport: closed")
	// ErrAlreadyStarted is the fatal configuration error of spec.md §7 for
	// calling Start twice.
	ErrAlreadyStarted = errors.New("transport: already started")
)

// Options configures a Transport (spec.md §6 "Construction parameters").
type Options struct {
	// SessionIDGenerator mints session ids; nil selects stateless mode.
	SessionIDGenerator session.IDGenerator
	// OnSessionInitialized fires once, when the initialize handshake
	// completes, with the newly assigned session id (stateful mode only).
	OnSessionInitialized func(sessionID string)
	// EnableJSONResponse selects buffered JSON responses over SSE for
	// POSTs that contain requests. Default false (SSE).
	EnableJSONResponse bool
	// EventStore optionally backs SSE resumability. Nil disables event
	// ids and replay.
	EventStore eventstore.Store
	// KeepAliveInterval is the period between keep-alive comments on open
	// SSE streams. Zero selects the 25s default; a negative value
	// disables keep-alives entirely.
	KeepAliveInterval time.Duration
	// SessionTimeout auto-closes an idle session (SPEC_FULL.md
	// "SUPPLEMENTED FEATURES" item 3). Zero disables it.
	SessionTimeout time.Duration
	// SupportedProtocolVersions, if non-empty, is the allow-list validated
	// against the MCP-Protocol-Version request header (SPEC_FULL.md item
	// 1). An empty list accepts any (or no) header value.
	SupportedProtocolVersions []string
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics, if set, records the Prometheus series described in
	// SPEC_FULL.md "Metrics": active stream count, SSE frames written,
	// keep-alives sent, and events appended to the event store. Nil
	// disables metrics recording entirely.
	Metrics *telemetry.Metrics
	// OnMessage is invoked once per classified inbound JSON-RPC message.
	OnMessage func(msg *jsonrpc.Message)
	// OnError surfaces internal invariant breaches (spec.md §7); never a
	// panic.
	OnError func(err error)
	// OnClose fires once, after Close() finishes tearing down all streams.
	OnClose func()
}

// Transport is one instance of the streamable HTTP transport state
// machine, corresponding to exactly one session in stateful mode (spec.md
// §3, SPEC_FULL.md item 6).
type Transport struct {
	opts    Options
	logger  *slog.Logger
	session *session.Manager
	idle    *session.IdleTimer

	mu               sync.Mutex
	started          bool
	closed           bool
	streams          map[string]*stream
	requestToStream  map[jsonrpc.ID]string
	standaloneStream string // "" if none open
}

// New constructs a Transport. It does not begin accepting requests until
// Start is called.
func New(opts Options) *Transport {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.KeepAliveInterval == 0 {
		opts.KeepAliveInterval = defaultKeepAlive
	}

	t := &Transport{
		opts:            opts,
		logger:          opts.Logger,
		streams:         make(map[string]*stream),
		requestToStream: make(map[jsonrpc.ID]string),
	}
	t.session = session.NewManager(opts.SessionIDGenerator, opts.OnSessionInitialized)
	if opts.SessionTimeout > 0 {
		t.idle = session.NewIdleTimer(opts.SessionTimeout, t.closeOnIdleTimeout)
	}
	return t
}

// Start marks the transport ready to accept requests. Calling it twice is
// a fatal configuration error (spec.md §7).
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	return nil
}

// SessionID returns the session id assigned at initialization, "" before
// initialization or in stateless mode.
func (t *Transport) SessionID() string { return t.session.SessionID() }

func (t *Transport) closeOnIdleTimeout() {
	t.logger.Info("transport: closing idle session", "session_id", t.SessionID())
	t.Close()
}

func (t *Transport) emitError(err error) {
	if t.opts.OnError != nil {
		t.opts.OnError(err)
	} else {
		t.logger.Error("transport: internal error", "error", err)
	}
}

// checkProtocolVersion implements SPEC_FULL.md item 1.
func (t *Transport) checkProtocolVersion(req httpadapter.Request) bool {
	if len(t.opts.SupportedProtocolVersions) == 0 {
		return true
	}
	v := req.Header(protocolVersionHeader)
	if v == "" {
		return true // defaults to the oldest supported version, per the reference implementation.
	}
	for _, supported := range t.opts.SupportedProtocolVersions {
		if v == supported {
			return true
		}
	}
	return false
}

func acceptContains(req httpadapter.Request, mediaType string) bool {
	accept := req.Header("Accept")
	if accept == "" {
		return false
	}
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if part == mediaType || part == "*/*" {
			return true
		}
	}
	return false
}

func writeTransportError(resp httpadapter.Response, status int, code int, message string, data []byte) {
	body := jsonrpc.EncodeErrorResponse(jsonrpc.ID{}, code, message, data)
	resp.SetStatus(status)
	resp.SetHeader("Content-Type", "application/json")
	resp.Write(body)
	resp.Close()
}

// HandleRequest dispatches req/resp by HTTP method (spec.md §4.6).
func (t *Transport) HandleRequest(req httpadapter.Request, resp httpadapter.Response) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		writeTransportError(resp, 400, jsonrpc.CodeTransportError, "Bad Request: transport is closed", nil)
		return
	}

	if !t.checkProtocolVersion(req) {
		writeTransportError(resp, 400, jsonrpc.CodeInvalidRequest, "Bad Request: unsupported MCP-Protocol-Version", nil)
		return
	}

	switch req.Method() {
	case "POST":
		t.handlePost(req, resp)
	case "GET":
		t.handleGet(req, resp)
	case "DELETE":
		t.handleDelete(req, resp)
	default:
		resp.SetHeader("Allow", "GET, POST, DELETE")
		writeTransportError(resp, 405, jsonrpc.CodeTransportError, "Method Not Allowed", nil)
	}
}

func newStreamID() string { return uuid.NewString() }

func (t *Transport) incActiveStreams() {
	if t.opts.Metrics != nil {
		t.opts.Metrics.ActiveStreams.Inc()
	}
}

func (t *Transport) decActiveStreams() {
	if t.opts.Metrics != nil {
		t.opts.Metrics.ActiveStreams.Dec()
	}
}

// streamKindLabel returns the SSEFramesTotal stream_kind label for st.
func streamKindLabel(st *stream) string {
	if st.isStandalone {
		return "standalone"
	}
	return "post"
}

func (t *Transport) recordSSEFrame(st *stream) {
	if t.opts.Metrics != nil {
		t.opts.Metrics.SSEFramesTotal.WithLabelValues(streamKindLabel(st)).Inc()
	}
}

func (t *Transport) recordKeepAlive() {
	if t.opts.Metrics != nil {
		t.opts.Metrics.KeepAlivesTotal.Inc()
	}
}

func (t *Transport) recordEventAppended() {
	if t.opts.Metrics != nil {
		t.opts.Metrics.EventStoreAppended.Inc()
	}
}
