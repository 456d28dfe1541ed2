// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"fmt"
)

// Service is the operation registry a daemon exposes over its socket.
// Implementations must be safe for concurrent Dispatch calls: the
// runtime runs many in-flight operations at once, on one connection
// and across connections.
type Service interface {
	// Name is the daemon's namespace (e.g. "browser"). Shorthand
	// method names resolve against it.
	Name() string

	// Version is the daemon's semantic version, reported by the
	// health built-in.
	Version() string

	// Methods lists every registered operation for introspection.
	Methods() []MethodInfo

	// Dispatch runs the named operation. Unknown methods, parameter
	// violations, and operation failures are all reported as errors;
	// the runtime turns them into ok:false responses.
	Dispatch(ctx context.Context, method string, params map[string]any) (any, error)
}

// HandlerFunc executes one operation. The returned value is marshaled
// into the response's result field; a nil value becomes an empty
// object.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// MethodInfo describes one operation for the methods built-in.
type MethodInfo struct {
	// Name is the full method name including the namespace prefix.
	Name string `json:"name"`

	// Description is a one-line human-readable summary.
	Description string `json:"description"`

	// Params documents the operation's parameters.
	Params []ParamInfo `json:"params,omitempty"`

	// Schema is an optional JSON Schema for the params object. When
	// set, the registry validates params against it before invoking
	// the handler. Not serialized in methods output; Params carries
	// the human-readable view.
	Schema json.RawMessage `json:"-"`
}

// ParamInfo documents one parameter of an operation.
type ParamInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// UnknownMethodError reports a method name that matched no operation,
// including after shorthand resolution. The message contains the
// literal method string the caller sent.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("Unknown method: %s", e.Method)
}

// InvalidParamsError reports an operation-specific parameter
// validation failure.
type InvalidParamsError struct {
	Method string
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params for %s: %s", e.Method, e.Reason)
}

// VersionError reports a request whose protocol version field does
// not match the version this runtime speaks.
type VersionError struct {
	Got  int
	Want int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported protocol version %d (want %d)", e.Got, e.Want)
}
