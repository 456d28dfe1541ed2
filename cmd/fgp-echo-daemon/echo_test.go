// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/fgp-foundation/fgp/lib/service"
)

func TestEchoRoundTrip(t *testing.T) {
	registry := newRegistry()

	result, err := registry.Dispatch(context.Background(), "echo.echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.(map[string]any)["message"] != "hello" {
		t.Errorf("result = %v", result)
	}
}

func TestEchoShorthand(t *testing.T) {
	registry := newRegistry()

	result, err := registry.Dispatch(context.Background(), "upper", map[string]any{"message": "quiet"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.(map[string]any)["message"] != "QUIET" {
		t.Errorf("result = %v", result)
	}
}

func TestEchoSchemaRejectsMissingMessage(t *testing.T) {
	registry := newRegistry()

	_, err := registry.Dispatch(context.Background(), "echo.echo", nil)
	var invalid *service.InvalidParamsError
	if !errors.As(err, &invalid) {
		t.Fatalf("Dispatch = %v, want *InvalidParamsError", err)
	}
}

func TestEchoSchemaRejectsWrongType(t *testing.T) {
	registry := newRegistry()

	_, err := registry.Dispatch(context.Background(), "echo.echo", map[string]any{"message": 42})
	var invalid *service.InvalidParamsError
	if !errors.As(err, &invalid) {
		t.Fatalf("Dispatch = %v, want *InvalidParamsError", err)
	}
}

func TestDelayCapped(t *testing.T) {
	registry := newRegistry()

	_, err := registry.Dispatch(context.Background(), "echo.delay", map[string]any{"ms": float64(3_600_000)})
	var invalid *service.InvalidParamsError
	if !errors.As(err, &invalid) {
		t.Fatalf("Dispatch = %v, want *InvalidParamsError", err)
	}
}

func TestDelayReturnsAfterWait(t *testing.T) {
	registry := newRegistry()

	result, err := registry.Dispatch(context.Background(), "echo.delay", map[string]any{"ms": float64(5)})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.(map[string]any)["slept_ms"] != 5 {
		t.Errorf("result = %v", result)
	}
}

func TestStatsCounts(t *testing.T) {
	registry := newRegistry()
	ctx := context.Background()

	for range 3 {
		if _, err := registry.Dispatch(ctx, "echo.echo", map[string]any{"message": "x"}); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if _, err := registry.Dispatch(ctx, "echo.upper", map[string]any{"message": "x"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	result, err := registry.Dispatch(ctx, "echo.stats", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	stats := result.(map[string]any)
	if stats["echo"] != int64(3) {
		t.Errorf("echo count = %v", stats["echo"])
	}
	if stats["upper"] != int64(1) {
		t.Errorf("upper count = %v", stats["upper"])
	}
	if stats["delay"] != int64(0) {
		t.Errorf("delay count = %v", stats["delay"])
	}
}
