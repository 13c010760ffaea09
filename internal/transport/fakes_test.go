package transport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/streamrelay/mcpstream/pkg/jsonrpc"
)

// mustID builds a jsonrpc.ID from a plain Go value for use in test
// literals, failing the test if the SDK codec rejects it.
func mustID(t *testing.T, v any) jsonrpc.ID {
	t.Helper()
	id, err := jsonrpc.MakeID(v)
	if err != nil {
		t.Fatalf("jsonrpc.MakeID(%v): %v", v, err)
	}
	return id
}

// fakeRequest is a minimal httpadapter.Request test double, letting tests
// drive the state machine directly without a real net/http round trip
// (the whole point of C1's abstract Request/Response contract).
type fakeRequest struct {
	method  string
	headers map[string]string
	ctType  string
	body    []byte
}

func newFakeRequest(method string) *fakeRequest {
	return &fakeRequest{method: method, headers: map[string]string{}}
}

func (r *fakeRequest) Method() string { return r.method }

func (r *fakeRequest) Header(name string) string { return r.headers[name] }

func (r *fakeRequest) ContentType() (string, map[string]string) { return r.ctType, nil }

func (r *fakeRequest) Body() io.Reader { return bytes.NewReader(r.body) }

func (r *fakeRequest) Context() context.Context { return context.Background() }

// newPostRequest builds a POST fakeRequest with the headers handlePost
// requires by default (correct Accept and Content-Type), and body as its
// JSON payload.
func newPostRequest(body string, sessionID string) *fakeRequest {
	r := newFakeRequest("POST")
	r.headers["Accept"] = "application/json, text/event-stream"
	r.ctType = "application/json"
	r.body = []byte(body)
	if sessionID != "" {
		r.headers[sessionIDHeader] = sessionID
	}
	return r
}

func newGetRequest(sessionID string) *fakeRequest {
	r := newFakeRequest("GET")
	r.headers["Accept"] = "text/event-stream"
	if sessionID != "" {
		r.headers[sessionIDHeader] = sessionID
	}
	return r
}

func newDeleteRequest(sessionID string) *fakeRequest {
	r := newFakeRequest("DELETE")
	if sessionID != "" {
		r.headers[sessionIDHeader] = sessionID
	}
	return r
}

// fakeResponse is a minimal httpadapter.Response test double: an
// in-memory sink that records status, headers, written bytes, and
// flush/close calls, with a manually triggerable disconnect channel.
type fakeResponse struct {
	mu      sync.Mutex
	status  int
	headers map[string]string
	buf     bytes.Buffer
	flushed bool
	closed  bool
	doneCh  chan struct{}
}

func newFakeResponse() *fakeResponse {
	return &fakeResponse{headers: map[string]string{}, doneCh: make(chan struct{})}
}

func (r *fakeResponse) SetStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
}

func (r *fakeResponse) SetHeader(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers[name] = value
}

func (r *fakeResponse) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *fakeResponse) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = true
}

func (r *fakeResponse) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *fakeResponse) Done() <-chan struct{} { return r.doneCh }

func (r *fakeResponse) BufferOutput(bool) {}

// disconnect simulates the client going away.
func (r *fakeResponse) disconnect() { close(r.doneCh) }

func (r *fakeResponse) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *fakeResponse) HeaderValue(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[name]
}

func (r *fakeResponse) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf.Bytes()...)
}

func (r *fakeResponse) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeResponse) IsFlushed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushed
}
