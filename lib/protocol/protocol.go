// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "encoding/json"

// Version is the FGP protocol version. Requests carrying any other
// value in their "v" field are answered with an error response; the
// connection stays open.
const Version = 1

// Request is one inbound frame. The id is chosen by the caller and is
// opaque to the runtime: it is never interpreted, only echoed back in
// the matching response. Method is either "<operation>" or
// "<namespace>.<operation>"; Params is operation-specific and may be
// absent.
type Request struct {
	ID     string         `json:"id"`
	V      int            `json:"v"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Response is one outbound frame. Exactly one of Result and Error is
// populated, selected by OK. ID always equals the triggering
// request's id.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Meta   Meta            `json:"meta"`
}

// Meta carries per-response server-side measurements.
type Meta struct {
	// ServerMS is the server-side handling time in milliseconds,
	// measured from frame decode to handler completion.
	ServerMS float64 `json:"server_ms"`

	// ProtocolV is the protocol version the server speaks.
	ProtocolV int `json:"protocol_v"`
}

// Success builds an ok response. result must already be marshaled
// JSON; use [MarshalResult] for arbitrary values.
func Success(id string, result json.RawMessage, serverMS float64) Response {
	return Response{
		ID:     id,
		OK:     true,
		Result: result,
		Meta:   Meta{ServerMS: serverMS, ProtocolV: Version},
	}
}

// Failure builds an error response carrying a human-readable message.
func Failure(id string, message string, serverMS float64) Response {
	return Response{
		ID:    id,
		OK:    false,
		Error: message,
		Meta:  Meta{ServerMS: serverMS, ProtocolV: Version},
	}
}

// MarshalResult converts a handler's result value into the raw JSON
// carried in a success response. A nil value marshals to an empty
// JSON object rather than null, so clients can always index into the
// result of a successful call.
func MarshalResult(value any) (json.RawMessage, error) {
	if value == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(value)
}
