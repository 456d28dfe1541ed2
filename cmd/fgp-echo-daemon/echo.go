// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fgp-foundation/fgp/lib/service"
)

// daemonVersion is the echo daemon's own version, distinct from the
// runtime build version.
const daemonVersion = "1.0.0"

// maxDelayMS caps echo.delay so a bad caller cannot park a handler
// goroutine for minutes.
const maxDelayMS = 60_000

// counters tracks per-method call counts for echo.stats.
type counters struct {
	echo  atomic.Int64
	upper atomic.Int64
	delay atomic.Int64
}

var echoSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"message": {"type": "string"}
	},
	"required": ["message"]
}`)

var delaySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"ms": {"type": "integer", "minimum": 0}
	},
	"required": ["ms"]
}`)

func newRegistry() *service.Registry {
	registry := service.NewRegistry("echo", daemonVersion)
	stats := &counters{}

	registry.Register(service.MethodInfo{
		Name:        "echo.echo",
		Description: "Return the message unchanged",
		Params: []service.ParamInfo{
			{Name: "message", Type: "string", Description: "text to echo back", Required: true},
		},
		Schema: echoSchema,
	}, func(ctx context.Context, params map[string]any) (any, error) {
		message, err := service.StringParam("echo.echo", params, "message")
		if err != nil {
			return nil, err
		}
		stats.echo.Add(1)
		return map[string]any{"message": message}, nil
	})

	registry.Register(service.MethodInfo{
		Name:        "echo.upper",
		Description: "Return the message upper-cased",
		Params: []service.ParamInfo{
			{Name: "message", Type: "string", Description: "text to upper-case", Required: true},
		},
		Schema: echoSchema,
	}, func(ctx context.Context, params map[string]any) (any, error) {
		message, err := service.StringParam("echo.upper", params, "message")
		if err != nil {
			return nil, err
		}
		stats.upper.Add(1)
		return map[string]any{"message": strings.ToUpper(message)}, nil
	})

	registry.Register(service.MethodInfo{
		Name:        "echo.delay",
		Description: "Wait the requested milliseconds, then return",
		Params: []service.ParamInfo{
			{Name: "ms", Type: "int", Description: "milliseconds to wait (max 60000)", Required: true},
		},
		Schema: delaySchema,
	}, func(ctx context.Context, params map[string]any) (any, error) {
		ms, err := service.IntParam("echo.delay", params, "ms")
		if err != nil {
			return nil, err
		}
		if ms > maxDelayMS {
			return nil, &service.InvalidParamsError{
				Method: "echo.delay",
				Reason: "ms exceeds the 60000 maximum",
			}
		}

		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		stats.delay.Add(1)
		return map[string]any{"slept_ms": ms}, nil
	})

	registry.Register(service.MethodInfo{
		Name:        "echo.stats",
		Description: "Per-method call counts since startup",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{
			"echo":  stats.echo.Load(),
			"upper": stats.upper.Load(),
			"delay": stats.delay.Load(),
		}, nil
	})

	return registry
}
