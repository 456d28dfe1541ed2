// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package service defines the operation registry that an FGP daemon
// exposes over its socket.
//
// A [Service] is a named, versioned collection of operations. The
// runtime dispatches each decoded request into Dispatch by method
// name; the standard implementation is [Registry], a lookup table of
// handler closures populated with Register before the daemon starts
// and immutable afterwards.
//
// Method names are namespaced: a daemon named "browser" registers
// "browser.open". Callers may use the shorthand "open"; the registry
// resolves an exact match first and then tries the namespaced form
// before failing with an unknown-method error.
//
// Every registry carries three built-in operations regardless of
// domain: "health" (status, uptime, version; never fails),
// "methods" (operation introspection), and "stop" (acknowledges and
// triggers daemon shutdown).
//
// Operations may declare a JSON Schema for their parameters; when
// present, the registry validates params before the handler runs and
// reports violations as invalid-parameter errors.
package service
