// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon runs an FGP service on a Unix domain socket.
//
// [Server] owns the daemon lifecycle: it claims the socket path
// (probing and removing a stale socket left by a dead process, but
// refusing to displace a live daemon), writes a metadata file beside
// the socket, accepts connections until its context is cancelled or
// the stop built-in fires, then drains in-flight operations before
// removing the socket.
//
// Each accepted connection is handled independently. Within a
// connection, frames are decoded strictly in arrival order but every
// operation runs in its own goroutine, so a slow operation never
// delays the response to a faster one requested after it. Responses
// are written to the connection's single outbound stream as
// completions arrive, in any order, each tagged with its request id;
// the write path serializes frames so they never interleave. Every
// request yields exactly one response.
//
// Per-request failures (unknown methods, parameter violations,
// handler errors, version mismatches) become ok:false responses and
// never terminate the connection. Only a frame whose id cannot be
// recovered closes the connection, and only fatal startup errors
// (bind failure, live daemon already on the socket) fail the process.
package daemon
