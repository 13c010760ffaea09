package jsonrpc

import (
	"encoding/json"
	"testing"
)

func mustID(t *testing.T, v any) ID {
	t.Helper()
	id, err := MakeID(v)
	if err != nil {
		t.Fatalf("MakeID(%v): %v", v, err)
	}
	return id
}

func TestParseClassifiesRequest(t *testing.T) {
	msg, err := Parse(json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"x":1}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !msg.IsRequest() {
		t.Fatalf("expected request, got kind %s", msg.Kind)
	}
	if msg.Method != "tools/call" {
		t.Fatalf("method = %q", msg.Method)
	}
	if !msg.ID.IsValid() {
		t.Fatal("expected a valid id")
	}
	if msg.ID != mustID(t, float64(1)) {
		t.Fatalf("id = %v", msg.ID)
	}
}

func TestParseClassifiesNotification(t *testing.T) {
	msg, err := Parse(json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/progress"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !msg.IsNotification() {
		t.Fatalf("expected notification, got kind %s", msg.Kind)
	}
	if msg.ID.IsValid() {
		t.Fatalf("notification must not have a valid id")
	}
}

func TestParseClassifiesResponseAndError(t *testing.T) {
	resp, err := Parse(json.RawMessage(`{"jsonrpc":"2.0","id":"a","result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("Parse response: %v", err)
	}
	if !resp.IsResponse() {
		t.Fatalf("expected response, got %s", resp.Kind)
	}
	if resp.ID != mustID(t, "a") {
		t.Fatalf("id = %v", resp.ID)
	}

	errMsg, err := Parse(json.RawMessage(`{"jsonrpc":"2.0","id":"a","error":{"code":-32601,"message":"not found"}}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !errMsg.IsError() {
		t.Fatalf("expected error, got %s", errMsg.Kind)
	}
	if errMsg.Err.Code != -32601 {
		t.Fatalf("code = %d", errMsg.Err.Code)
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse(json.RawMessage(`{not json`))
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestParseRejectsEmptyEnvelope(t *testing.T) {
	_, err := Parse(json.RawMessage(`{"jsonrpc":"2.0"}`))
	if err == nil {
		t.Fatal("expected error for envelope with none of method/result/error")
	}
}

func TestParseNullIDIsNotification(t *testing.T) {
	// A request-shaped message with a literal null id has no valid id and
	// therefore cannot be answered; treated as a notification.
	msg, err := Parse(json.RawMessage(`{"jsonrpc":"2.0","id":null,"method":"ping"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !msg.IsNotification() {
		t.Fatalf("expected notification for null id, got %s", msg.Kind)
	}
}

func TestIsInitializeRequest(t *testing.T) {
	msg, err := Parse(json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !msg.IsInitializeRequest() {
		t.Fatal("expected IsInitializeRequest to be true")
	}
}

func TestParseBatchSingleValue(t *testing.T) {
	msgs, isBatch, err := ParseBatch([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("ParseBatch: %v", err)
	}
	if isBatch {
		t.Fatal("expected isBatch = false for a single object")
	}
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d", len(msgs))
	}
}

func TestParseBatchArray(t *testing.T) {
	body := []byte(`[{"jsonrpc":"2.0","id":1,"method":"a"},{"jsonrpc":"2.0","method":"b"}]`)
	msgs, isBatch, err := ParseBatch(body)
	if err != nil {
		t.Fatalf("ParseBatch: %v", err)
	}
	if !isBatch {
		t.Fatal("expected isBatch = true")
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d", len(msgs))
	}
}

func TestParseBatchFailsWholeOnOneBadElement(t *testing.T) {
	body := []byte(`[{"jsonrpc":"2.0","id":1,"method":"a"},{"jsonrpc":"2.0"}]`)
	_, _, err := ParseBatch(body)
	if err == nil {
		t.Fatal("expected the whole batch to fail because one element is neither request, response, error, nor notification")
	}
}

func TestParseBatchRejectsEmptyArray(t *testing.T) {
	_, _, err := ParseBatch([]byte(`[]`))
	if err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestParseBatchRejectsEmptyBody(t *testing.T) {
	_, _, err := ParseBatch([]byte(``))
	if err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestEncodeErrorResponsePreservesID(t *testing.T) {
	out := EncodeErrorResponse(mustID(t, float64(42)), CodeInvalidRequest, "bad request", nil)
	var decoded struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Error   struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != 42 {
		t.Fatalf("id = %d", decoded.ID)
	}
	if decoded.Error.Code != CodeInvalidRequest {
		t.Fatalf("code = %d", decoded.Error.Code)
	}
}

func TestEncodeErrorResponseNullIDWhenAbsent(t *testing.T) {
	out := EncodeErrorResponse(ID{}, CodeParseError, "parse error", nil)
	var decoded struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(decoded.ID) != "null" {
		t.Fatalf("id = %s, want null", decoded.ID)
	}
}

func TestEncodeRoundTripsRequest(t *testing.T) {
	msg := &Message{Kind: KindRequest, ID: mustID(t, float64(7)), Method: "tools/call", Params: json.RawMessage(`{"x":1}`)}
	out, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if decoded.Method != "tools/call" {
		t.Fatalf("method = %q", decoded.Method)
	}
	if !decoded.IsRequest() {
		t.Fatalf("expected request, got kind %s", decoded.Kind)
	}
}

func TestEncodeRoundTripsNotification(t *testing.T) {
	msg := &Message{Kind: KindNotification, Method: "notifications/progress"}
	out, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !decoded.IsNotification() {
		t.Fatalf("expected notification, got kind %s", decoded.Kind)
	}
}

func TestJoinBatchSingleMessagePassesThrough(t *testing.T) {
	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{}}`)
	out, err := JoinBatch([]json.RawMessage{msg})
	if err != nil {
		t.Fatalf("JoinBatch: %v", err)
	}
	if string(out) != string(msg) {
		t.Fatalf("out = %s, want %s", out, msg)
	}
}

func TestJoinBatchMultipleMessagesFormsArray(t *testing.T) {
	a := json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{}}`)
	b := json.RawMessage(`{"jsonrpc":"2.0","id":2,"result":{}}`)
	out, err := JoinBatch([]json.RawMessage{a, b})
	if err != nil {
		t.Fatalf("JoinBatch: %v", err)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(out, &arr); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(arr) != 2 {
		t.Fatalf("len(arr) = %d", len(arr))
	}
}
