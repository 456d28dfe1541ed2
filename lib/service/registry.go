// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fgp-foundation/fgp/lib/clock"
)

// Registry is the standard Service implementation: a lookup table
// from method name to handler. Register every operation before the
// daemon starts serving; the table is not synchronized for mutation
// because it is immutable once Dispatch is in use.
type Registry struct {
	name    string
	version string
	clk     clock.Clock

	handlers map[string]*operation
	order    []string

	startTime time.Time
	degraded  atomic.Bool
	stopFunc  atomic.Pointer[context.CancelFunc]
}

// operation pairs a registered handler with its metadata and an
// optional compiled parameter schema.
type operation struct {
	info    MethodInfo
	handler HandlerFunc
	schema  *jsonschema.Schema
}

// RegistryOption configures optional registry behavior.
type RegistryOption func(*Registry)

// WithClock overrides the clock used for uptime reporting. Tests use
// this with a fake clock.
func WithClock(clk clock.Clock) RegistryOption {
	return func(r *Registry) {
		r.clk = clk
	}
}

// NewRegistry creates a registry for a daemon with the given
// namespace and version, with the three built-in operations (health,
// methods, stop) already registered.
func NewRegistry(name, version string, options ...RegistryOption) *Registry {
	r := &Registry{
		name:     name,
		version:  version,
		clk:      clock.Real(),
		handlers: make(map[string]*operation),
	}
	for _, option := range options {
		option(r)
	}
	r.startTime = r.clk.Now()
	r.registerBuiltins()
	return r
}

// Register adds an operation. Panics on a duplicate name or an
// uncompilable schema; both are programming errors, not runtime
// data.
func (r *Registry) Register(info MethodInfo, handler HandlerFunc) {
	if _, exists := r.handlers[info.Name]; exists {
		panic(fmt.Sprintf("service.Registry: duplicate operation %q", info.Name))
	}
	op := &operation{info: info, handler: handler}
	if len(info.Schema) > 0 {
		op.schema = mustCompileSchema(info.Name, info.Schema)
	}
	r.handlers[info.Name] = op
	r.order = append(r.order, info.Name)
}

// Name returns the daemon namespace.
func (r *Registry) Name() string { return r.name }

// Version returns the daemon version.
func (r *Registry) Version() string { return r.version }

// Methods returns operation metadata in registration order, built-ins
// first.
func (r *Registry) Methods() []MethodInfo {
	methods := make([]MethodInfo, 0, len(r.order))
	for _, name := range r.order {
		methods = append(methods, r.handlers[name].info)
	}
	return methods
}

// SetDegraded flips the health status between "healthy" and
// "degraded". Domain services call this when an upstream dependency
// becomes unavailable; health itself never fails.
func (r *Registry) SetDegraded(degraded bool) {
	r.degraded.Store(degraded)
}

// OnStop installs the function the stop built-in invokes to begin
// daemon shutdown. The runtime installs this before serving; a stop
// request before that (only possible in tests) is acknowledged
// without effect.
func (r *Registry) OnStop(cancel context.CancelFunc) {
	r.stopFunc.Store(&cancel)
}

// Resolve maps a request's method string to the registered operation
// name: exact match first, then the namespaced shorthand form.
// Returns an UnknownMethodError naming the literal string the caller
// sent when neither matches.
func (r *Registry) Resolve(method string) (string, error) {
	if _, exists := r.handlers[method]; exists {
		return method, nil
	}
	if !strings.Contains(method, ".") {
		namespaced := r.name + "." + method
		if _, exists := r.handlers[namespaced]; exists {
			return namespaced, nil
		}
	}
	return "", &UnknownMethodError{Method: method}
}

// Dispatch resolves the method, validates params against the
// operation's schema when one is declared, and runs the handler.
func (r *Registry) Dispatch(ctx context.Context, method string, params map[string]any) (any, error) {
	resolved, err := r.Resolve(method)
	if err != nil {
		return nil, err
	}
	op := r.handlers[resolved]

	if op.schema != nil {
		if err := validateParams(op.schema, params); err != nil {
			return nil, &InvalidParamsError{Method: resolved, Reason: err.Error()}
		}
	}

	if params == nil {
		params = map[string]any{}
	}
	return op.handler(ctx, params)
}

// Uptime returns how long the registry has been alive.
func (r *Registry) Uptime() time.Duration {
	return r.clk.Since(r.startTime)
}

// HealthResult is the result shape of the health built-in.
type HealthResult struct {
	Status     string `json:"status"`
	UptimeSecs int64  `json:"uptime_secs"`
	Version    string `json:"version"`
}

// MethodsResult is the result shape of the methods built-in.
type MethodsResult struct {
	Service string       `json:"service"`
	Methods []MethodInfo `json:"methods"`
}

func (r *Registry) registerBuiltins() {
	r.Register(MethodInfo{
		Name:        "health",
		Description: "Daemon liveness, uptime, and version",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		status := "healthy"
		if r.degraded.Load() {
			status = "degraded"
		}
		return HealthResult{
			Status:     status,
			UptimeSecs: int64(r.Uptime().Seconds()),
			Version:    r.version,
		}, nil
	})

	r.Register(MethodInfo{
		Name:        "methods",
		Description: "List every operation this daemon exposes",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		return MethodsResult{Service: r.name, Methods: r.Methods()}, nil
	})

	r.Register(MethodInfo{
		Name:        "stop",
		Description: "Acknowledge and begin daemon shutdown",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		if cancel := r.stopFunc.Load(); cancel != nil {
			(*cancel)()
		}
		return map[string]any{"stopping": true}, nil
	})
}

// mustCompileSchema compiles a method's parameter schema at
// registration time so dispatch never pays compilation cost.
func mustCompileSchema(method string, raw json.RawMessage) *jsonschema.Schema {
	document, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("service.Registry: schema for %q is not valid JSON: %v", method, err))
	}
	compiler := jsonschema.NewCompiler()
	resource := method + "/params.json"
	if err := compiler.AddResource(resource, document); err != nil {
		panic(fmt.Sprintf("service.Registry: adding schema for %q: %v", method, err))
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		panic(fmt.Sprintf("service.Registry: compiling schema for %q: %v", method, err))
	}
	return schema
}

// validateParams runs a compiled schema against the params map. The
// map is round-tripped through the schema library's own JSON decoder
// for correct number handling.
func validateParams(schema *jsonschema.Schema, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("decoding params: %w", err)
	}
	return schema.Validate(decoded)
}
