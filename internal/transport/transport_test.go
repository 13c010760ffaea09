package transport

import (
	"errors"
	"testing"
)

func TestNew_DefaultsKeepAliveIntervalAndLogger(t *testing.T) {
	tr := New(Options{})
	if tr.opts.KeepAliveInterval != defaultKeepAlive {
		t.Fatalf("expected default keep-alive interval %v, got %v", defaultKeepAlive, tr.opts.KeepAliveInterval)
	}
	if tr.logger == nil {
		t.Fatal("expected a non-nil default logger")
	}
}

func TestStart_TwiceReturnsErrAlreadyStarted(t *testing.T) {
	tr := New(Options{})
	if err := tr.Start(); err != nil {
		t.Fatalf("first Start: unexpected error %v", err)
	}
	if err := tr.Start(); err != ErrAlreadyStarted {
		t.Fatalf("second Start: expected ErrAlreadyStarted, got %v", err)
	}
}

func TestHandleRequest_UnsupportedMethodReturns405WithAllowHeader(t *testing.T) {
	tr := New(Options{})
	tr.Start()

	req := newFakeRequest("PUT")
	resp := newFakeResponse()
	tr.HandleRequest(req, resp)

	if resp.Status() != 405 {
		t.Fatalf("expected status 405, got %d", resp.Status())
	}
	if got := resp.HeaderValue("Allow"); got != "GET, POST, DELETE" {
		t.Fatalf("expected Allow header %q, got %q", "GET, POST, DELETE", got)
	}
}

func TestHandleRequest_AfterCloseReturns400(t *testing.T) {
	tr := New(Options{})
	tr.Start()
	tr.Close()

	req := newPostRequest(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`, "")
	resp := newFakeResponse()
	tr.HandleRequest(req, resp)

	if resp.Status() != 400 {
		t.Fatalf("expected status 400 after close, got %d", resp.Status())
	}
}

func TestHandleRequest_ProtocolVersionAllowListRejectsUnsupported(t *testing.T) {
	tr := New(Options{SupportedProtocolVersions: []string{"2025-06-18"}})
	tr.Start()

	req := newPostRequest(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`, "")
	req.headers[protocolVersionHeader] = "2024-01-01"
	resp := newFakeResponse()
	tr.HandleRequest(req, resp)

	if resp.Status() != 400 {
		t.Fatalf("expected status 400 for unsupported protocol version, got %d", resp.Status())
	}
}

func TestCheckProtocolVersion_MissingHeaderDefaultsToAccepted(t *testing.T) {
	tr := New(Options{SupportedProtocolVersions: []string{"2025-06-18"}})
	req := newFakeRequest("POST")
	if !tr.checkProtocolVersion(req) {
		t.Fatal("missing MCP-Protocol-Version header should default to the oldest supported version, not reject")
	}
}

func TestCheckProtocolVersion_EmptyAllowListAcceptsAnyValue(t *testing.T) {
	tr := New(Options{})
	req := newFakeRequest("POST")
	req.headers[protocolVersionHeader] = "anything-goes"
	if !tr.checkProtocolVersion(req) {
		t.Fatal("empty SupportedProtocolVersions should accept any header value")
	}
}

func TestCheckProtocolVersion_MatchingHeaderAccepted(t *testing.T) {
	tr := New(Options{SupportedProtocolVersions: []string{"2025-06-18", "2024-11-05"}})
	req := newFakeRequest("POST")
	req.headers[protocolVersionHeader] = "2024-11-05"
	if !tr.checkProtocolVersion(req) {
		t.Fatal("expected a header matching an allow-listed version to be accepted")
	}
}

func TestEmitError_FallsBackToLoggerWhenNoOnError(t *testing.T) {
	// Exercises the default branch of emitError; mostly a guard against a
	// nil-pointer panic when OnError is unset.
	tr := New(Options{})
	tr.emitError(errors.New("boom"))
}
