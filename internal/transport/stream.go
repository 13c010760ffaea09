package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/streamrelay/mcpstream/internal/httpadapter"
	"github.com/streamrelay/mcpstream/pkg/jsonrpc"
	"github.com/streamrelay/mcpstream/pkg/sse"
)

type streamMode int

const (
	modeSSE streamMode = iota
	modeJSON
)

// stream is one open response sink registered with the transport: either
// the standalone GET stream or a per-POST response stream (spec.md §3).
// All fields are guarded by the owning Transport's mutex.
type stream struct {
	id           string
	mode         streamMode
	isStandalone bool

	resp httpadapter.Response
	sseW *sse.Writer // nil when mode == modeJSON

	expected map[jsonrpc.ID]struct{} // request ids owed a response, SSE and JSON mode alike
	results  map[jsonrpc.ID]json.RawMessage
	order    []jsonrpc.ID // input order, for JSON-mode array serialization

	keepAliveTimer *time.Timer
	closed         bool

	doneCh   chan struct{}
	doneOnce sync.Once
}

func newStream(id string, mode streamMode, resp httpadapter.Response, requests []*jsonrpc.Message) *stream {
	st := &stream{
		id:       id,
		mode:     mode,
		resp:     resp,
		expected: make(map[jsonrpc.ID]struct{}, len(requests)),
		results:  make(map[jsonrpc.ID]json.RawMessage, len(requests)),
		order:    make([]jsonrpc.ID, 0, len(requests)),
		doneCh:   make(chan struct{}),
	}
	for _, m := range requests {
		st.expected[m.ID] = struct{}{}
		st.order = append(st.order, m.ID)
	}
	if mode == modeSSE {
		st.sseW = sse.NewWriter(resp)
	}
	return st
}

// complete reports whether every expected request id now has a recorded
// result (spec.md §3 "Pending responses").
func (st *stream) complete() bool {
	return len(st.results) >= len(st.expected)
}

// rebindResponse points st at a newly committed response sink, used when
// a standalone stream is claimed by a fresh GET connection resuming a
// previously known stream id (spec.md §4.6.2 step 3).
func (st *stream) rebindResponse(resp httpadapter.Response) {
	st.resp = resp
	if st.mode == modeSSE {
		st.sseW = sse.NewWriter(resp)
	}
}

func (st *stream) stopKeepAlive() {
	if st.keepAliveTimer != nil {
		st.keepAliveTimer.Stop()
	}
}

// markDone signals any goroutine watching this stream's disconnect
// channel to stop, exactly once.
func (st *stream) markDone() {
	st.doneOnce.Do(func() { close(st.doneCh) })
}
