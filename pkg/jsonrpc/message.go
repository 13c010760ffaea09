// Package jsonrpc implements the JSON-RPC 2.0 message model used by the
// streamable HTTP transport: parsing, classification into request,
// response, error, and notification, and serialization back to wire
// format. It knows nothing about MCP methods, sessions, or HTTP.
//
// The wire codec itself is not hand-rolled: it delegates to
// github.com/modelcontextprotocol/go-sdk/jsonrpc, the same library the
// teacher's pkg/mcp/codec.go wraps for EncodeMessage/DecodeMessage. This
// package adds the one thing that SDK doesn't track — request vs.
// notification and response vs. error classification, plus batch (array)
// framing, which the MCP wire format used before batching was dropped
// from the spec but which spec.md §3 still requires.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	mcpjsonrpc "github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Kind classifies a decoded JSON-RPC message.
type Kind int

const (
	// KindRequest is a message with both "id" and "method": it expects a response.
	KindRequest Kind = iota
	// KindNotification is a message with "method" and no "id": no response is expected.
	KindNotification
	// KindResponse is a message with "id" and "result".
	KindResponse
	// KindError is a message with "id" and "error".
	KindError
)

// String returns a lowercase name for the kind, used in log fields.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ID is the JSON-RPC request identifier, delegated to the MCP SDK's own
// representation so the transport's request-to-stream correlation maps
// (map[jsonrpc.ID]string, the same shape the SDK's own
// streamableServerConn.requestStreams uses) key on exactly the type the
// codec produces. The zero value is the "no id" identifier: a
// notification's id, and the sentinel used to target the standalone
// stream in Send.
type ID = mcpjsonrpc.ID

// MakeID constructs an ID from a string, int64, or float64 value,
// delegating to the SDK so hand-built IDs compare equal to ones produced
// by decoding the wire format.
func MakeID(v any) (ID, error) { return mcpjsonrpc.MakeID(v) }

// Error is a JSON-RPC 2.0 error object, delegated to the MCP SDK; it
// already implements the error interface.
type Error = mcpjsonrpc.Error

// Well-known JSON-RPC / MCP transport error codes (spec.md §6, §7).
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeTransportError  = -32000
	CodeSessionNotFound = -32001
)

// Message is a single decoded JSON-RPC 2.0 value: a request, notification,
// response, or error. Raw preserves the original bytes for passthrough and
// for hashing/logging without re-encoding.
type Message struct {
	Raw    json.RawMessage
	Kind   Kind
	ID     ID
	Method string          // set for KindRequest and KindNotification
	Params json.RawMessage // set for KindRequest and KindNotification
	Result json.RawMessage // set for KindResponse
	Err    *Error          // set for KindError
}

// IsRequest reports whether m expects a response.
func (m *Message) IsRequest() bool { return m.Kind == KindRequest }

// IsNotification reports whether m is a one-way message.
func (m *Message) IsNotification() bool { return m.Kind == KindNotification }

// IsResponse reports whether m carries a successful result.
func (m *Message) IsResponse() bool { return m.Kind == KindResponse }

// IsError reports whether m carries a JSON-RPC error.
func (m *Message) IsError() bool { return m.Kind == KindError }

// IsInitializeRequest reports whether m is the MCP "initialize" request,
// the one JSON-RPC method the transport itself must recognize (spec.md §3
// invariant 3, §4.5).
func (m *Message) IsInitializeRequest() bool {
	return m.Kind == KindRequest && m.Method == "initialize"
}

// ParseError wraps a JSON decoding failure. Callers render it as HTTP 400
// with JSON-RPC error code -32700 (spec.md §4.2).
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse error: %v", e.Cause) }
func (e *ParseError) Unwrap() error { return e.Cause }

// Parse decodes a single JSON-RPC value (not a batch) via the MCP SDK's
// codec and classifies it into the four kinds spec.md's transport
// dispatches on. The SDK models the wire format as exactly two concrete
// types — *jsonrpc.Request (covering both calls and notifications,
// distinguished by Request.IsCall()) and *jsonrpc.Response (covering both
// results and errors, distinguished by a non-nil Error field) — the same
// split the teacher's pkg/mcp/message.go builds its own Message wrapper
// around.
func Parse(raw json.RawMessage) (*Message, error) {
	trimmed := bytes.TrimSpace(raw)
	decoded, err := mcpjsonrpc.DecodeMessage(trimmed)
	if err != nil {
		return nil, &ParseError{Cause: err}
	}

	msg := &Message{Raw: append(json.RawMessage(nil), trimmed...)}
	switch v := decoded.(type) {
	case *mcpjsonrpc.Request:
		msg.Method = v.Method
		msg.Params = v.Params
		if v.IsCall() {
			msg.Kind = KindRequest
			msg.ID = v.ID
		} else {
			msg.Kind = KindNotification
		}
	case *mcpjsonrpc.Response:
		msg.ID = v.ID
		if v.Error != nil {
			msg.Kind = KindError
			rpcErr, ok := v.Error.(*Error)
			if !ok {
				return nil, &ParseError{Cause: fmt.Errorf("unexpected error type %T", v.Error)}
			}
			msg.Err = rpcErr
		} else {
			msg.Kind = KindResponse
			msg.Result = v.Result
		}
	default:
		return nil, &ParseError{Cause: fmt.Errorf("unexpected decoded message type %T", decoded)}
	}
	return msg, nil
}

// ParseBatch decodes a POST body as either a single JSON-RPC message or a
// JSON array of messages (spec.md §3 "A POST body is either a single
// message or a batch"). Batch decoding fails as a whole on any element
// error (spec.md §4.2). Batching predates the SDK's own transport (MCP
// dropped it from the wire spec), so the array framing is this package's
// own responsibility; each element's codec still runs through Parse.
func ParseBatch(body []byte) (msgs []*Message, isBatch bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, &ParseError{Cause: fmt.Errorf("empty body")}
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, true, &ParseError{Cause: err}
		}
		if len(raws) == 0 {
			return nil, true, &ParseError{Cause: fmt.Errorf("empty batch")}
		}
		out := make([]*Message, 0, len(raws))
		for _, r := range raws {
			m, err := Parse(r)
			if err != nil {
				return nil, true, err
			}
			out = append(out, m)
		}
		return out, true, nil
	}

	m, err := Parse(trimmed)
	if err != nil {
		return nil, false, err
	}
	return []*Message{m}, false, nil
}

// EncodeErrorResponse renders the JSON-RPC error envelope specified by
// spec.md §6 for transport-level failures. A zero-value id serializes to
// a JSON null, per the spec.
func EncodeErrorResponse(id ID, code int, message string, data json.RawMessage) []byte {
	b, err := mcpjsonrpc.EncodeMessage(&mcpjsonrpc.Response{
		ID:    id,
		Error: &Error{Code: int64(code), Message: message, Data: data},
	})
	if err != nil {
		// The SDK only fails to encode an already-invalid Go value; every
		// field above is a plain string, int, or already-valid JSON.
		panic(fmt.Sprintf("jsonrpc: encoding error envelope: %v", err))
	}
	if !id.IsValid() {
		// The SDK codec does not write an absent id as null; set the id
		// member explicitly so the envelope carries "id": null.
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(b, &envelope); err == nil {
			envelope["id"] = json.RawMessage("null")
			if out, err := json.Marshal(envelope); err == nil {
				return out
			}
		}
	}
	return b
}

// Encode renders m back to wire bytes via the SDK's codec. If m.Raw is
// set (m came from Parse/ParseBatch) it is returned unchanged; otherwise
// m is serialized from its typed fields, letting callers build outgoing
// messages (e.g. upper-layer responses) without hand-assembling JSON.
func (m *Message) Encode() ([]byte, error) {
	if m.Raw != nil {
		return m.Raw, nil
	}
	switch m.Kind {
	case KindRequest, KindNotification:
		req := &mcpjsonrpc.Request{Method: m.Method, Params: m.Params}
		if m.Kind == KindRequest {
			req.ID = m.ID
		}
		return mcpjsonrpc.EncodeMessage(req)
	case KindResponse:
		return mcpjsonrpc.EncodeMessage(&mcpjsonrpc.Response{ID: m.ID, Result: m.Result})
	case KindError:
		return mcpjsonrpc.EncodeMessage(&mcpjsonrpc.Response{ID: m.ID, Error: m.Err})
	default:
		return nil, fmt.Errorf("jsonrpc: cannot encode message of kind %s", m.Kind)
	}
}

// JoinBatch combines multiple already-encoded JSON-RPC messages into a
// single JSON array, preserving the order given (spec.md §4.6.4 case 2:
// "single object if there was one request, else an array in input order").
func JoinBatch(messages []json.RawMessage) ([]byte, error) {
	if len(messages) == 1 {
		return messages[0], nil
	}
	return json.Marshal(messages)
}
