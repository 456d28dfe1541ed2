// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package client connects to an FGP daemon socket and issues calls.
//
// A [Client] owns one persistent connection. Concurrent Call
// invocations are multiplexed over it exactly the way the server
// multiplexes requests: each call gets a generated UUID id, an entry
// in the client's pending-call table, and a response routed back by
// id whenever it arrives, out of order or not. Writes are serialized
// so frames never interleave.
//
// Failures are distinguished by type so callers can branch:
//
//   - [*ConnectError]: the dial failed because the daemon is not
//     running or the socket path is wrong.
//   - [*ProtocolError]: the connection broke or the daemon sent
//     something unparsable mid-call.
//   - context.DeadlineExceeded / context.Canceled: the caller gave
//     up waiting. The request is abandoned client-side only; the
//     server may still complete the operation, and its eventual
//     response is discarded by the read loop.
//   - [*CallError]: the daemon answered ok:false; the message is the
//     daemon's error string.
package client
