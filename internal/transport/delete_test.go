package transport

import "testing"

func TestHandleDelete_RequiresValidSession(t *testing.T) {
	tr := New(Options{SessionIDGenerator: func() (string, error) { return "sid", nil }})
	tr.Start()
	tr.HandleRequest(newPostRequest(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`, ""), newFakeResponse())

	resp := newFakeResponse()
	tr.HandleRequest(newDeleteRequest("wrong"), resp)

	if resp.Status() != 404 {
		t.Fatalf("expected 404 for a DELETE with an unknown session id, got %d", resp.Status())
	}
}

func TestHandleDelete_ClosesTheTransport(t *testing.T) {
	var closed bool
	tr := New(Options{
		SessionIDGenerator: func() (string, error) { return "sid", nil },
		OnClose:            func() { closed = true },
	})
	tr.Start()
	tr.HandleRequest(newPostRequest(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`, ""), newFakeResponse())

	resp := newFakeResponse()
	tr.HandleRequest(newDeleteRequest("sid"), resp)

	if resp.Status() != 200 {
		t.Fatalf("expected 200, got %d", resp.Status())
	}
	if !closed {
		t.Fatal("expected DELETE to close the transport and fire OnClose")
	}

	// A subsequent request against the now-closed transport is rejected.
	after := newFakeResponse()
	tr.HandleRequest(newDeleteRequest("sid"), after)
	if after.Status() != 400 {
		t.Fatalf("expected 400 after close, got %d", after.Status())
	}
}
