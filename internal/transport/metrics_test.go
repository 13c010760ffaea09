package transport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/streamrelay/mcpstream/internal/adapter/outbound/eventstore/memory"
	"github.com/streamrelay/mcpstream/internal/telemetry"
	"github.com/streamrelay/mcpstream/pkg/jsonrpc"
)

func TestMetrics_ActiveStreamsAndSSEFramesRecordedAcrossRequestLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	store := memory.New()
	defer store.Close()

	var tr *Transport
	tr = New(Options{
		Metrics:            metrics,
		EventStore:         store,
		EnableJSONResponse: true, // keeps the initialize handshake off the SSE/event-store path so the assertions below isolate the standalone stream's activity
		OnMessage: func(m *jsonrpc.Message) {
			if m.IsRequest() {
				_ = tr.Send(&jsonrpc.Message{Kind: jsonrpc.KindResponse, ID: m.ID, Result: []byte(`{}`)}, jsonrpc.ID{})
			}
		},
	})
	tr.Start()
	tr.HandleRequest(newPostRequest(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`, ""), newFakeResponse())

	standalone := newFakeResponse()
	tr.HandleRequest(newGetRequest(""), standalone)

	if got := testutil.ToFloat64(metrics.ActiveStreams); got != 1 {
		t.Fatalf("ActiveStreams = %v, want 1", got)
	}

	notif := &jsonrpc.Message{Kind: jsonrpc.KindNotification, Method: "progress"}
	if err := tr.Send(notif, jsonrpc.ID{}); err != nil {
		t.Fatalf("Send: unexpected error %v", err)
	}

	if got := testutil.ToFloat64(metrics.SSEFramesTotal.WithLabelValues("standalone")); got != 1 {
		t.Fatalf("SSEFramesTotal{standalone} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.EventStoreAppended); got != 1 {
		t.Fatalf("EventStoreAppended = %v, want 1", got)
	}

	tr.Close()
	if got := testutil.ToFloat64(metrics.ActiveStreams); got != 0 {
		t.Fatalf("ActiveStreams after Close = %v, want 0", got)
	}
}

func TestMetrics_JSONModeStreamCompletionDecrementsActiveStreams(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	var tr *Transport
	tr = New(Options{
		Metrics:            metrics,
		EnableJSONResponse: true,
		OnMessage: func(m *jsonrpc.Message) {
			if m.IsRequest() {
				_ = tr.Send(&jsonrpc.Message{Kind: jsonrpc.KindResponse, ID: m.ID, Result: []byte(`{}`)}, jsonrpc.ID{})
			}
		},
	})
	tr.Start()
	tr.HandleRequest(newPostRequest(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`, ""), newFakeResponse())

	resp := newFakeResponse()
	tr.HandleRequest(newPostRequest(`{"jsonrpc":"2.0","id":"2","method":"ping"}`, ""), resp)

	if !resp.IsClosed() {
		t.Fatal("expected the JSON-mode stream to complete")
	}
	if got := testutil.ToFloat64(metrics.ActiveStreams); got != 0 {
		t.Fatalf("ActiveStreams = %v, want 0 once the JSON response completed", got)
	}
}
