// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the FGP wire format: newline-delimited JSON
// frames exchanged over a Unix domain socket.
//
// Each frame is one JSON object followed by '\n'. Clients send
// [Request] frames and receive [Response] frames; the id field ties a
// response to the request that produced it. Responses may arrive in
// any order relative to their requests, since the runtime multiplexes
// many in-flight requests over one connection; the id is the only
// correlation mechanism.
//
// [Decoder] reads request frames and reports malformed input as a
// [*DecodeError] that carries the request id when one could be
// recovered from the broken frame. This lets the server answer a
// malformed request with a well-formed error response instead of
// silently dropping it; when not even the id is recoverable the
// server closes the connection.
//
// [Encoder] writes response frames. Each frame is marshaled to a
// complete line and written with a single Write call so a frame is
// never interleaved with another mid-line.
package protocol
