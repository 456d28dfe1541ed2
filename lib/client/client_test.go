// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fgp-foundation/fgp/lib/daemon"
	"github.com/fgp-foundation/fgp/lib/service"
	"github.com/fgp-foundation/fgp/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// startDaemon runs an echo daemon on a temp socket and returns its
// socket path.
func startDaemon(t *testing.T) string {
	t.Helper()

	registry := service.NewRegistry("echo", "0.9.0")
	registry.Register(service.MethodInfo{
		Name:        "echo.echo",
		Description: "Return the message parameter",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		message, err := service.StringParam("echo.echo", params, "message")
		if err != nil {
			return nil, err
		}
		return map[string]any{"message": message}, nil
	})
	registry.Register(service.MethodInfo{
		Name:        "echo.slow",
		Description: "Return after a delay",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
		}
		return map[string]any{"speed": "slow"}, nil
	})
	registry.Register(service.MethodInfo{
		Name:        "echo.fail",
		Description: "Always fail",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("domain failure")
	})

	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	server := &daemon.Server{
		SocketPath: socketPath,
		Service:    registry,
		Logger:     testLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "daemon ready")

	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, serveErr, 5*time.Second, "daemon shutdown")
	})
	return socketPath
}

func connect(t *testing.T, socketPath string) *Client {
	t.Helper()
	c, err := Connect(socketPath, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCallRoundTrip(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	result, err := c.Call(context.Background(), "echo.echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(string(result), `"hello"`) {
		t.Errorf("result = %s, want echoed message", result)
	}
}

func TestHealthConvenience(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", health.Status)
	}
	if health.Version != "0.9.0" {
		t.Errorf("Version = %q, want 0.9.0", health.Version)
	}
}

func TestMethodsConvenience(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	listing, err := c.Methods(context.Background())
	if err != nil {
		t.Fatalf("Methods: %v", err)
	}
	if listing.Service != "echo" {
		t.Errorf("Service = %q, want echo", listing.Service)
	}
	found := false
	for _, method := range listing.Methods {
		if method.Name == "echo.echo" {
			found = true
		}
	}
	if !found {
		t.Error("methods listing missing echo.echo")
	}
}

func TestConcurrentCallsMultiplex(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	completions := make(chan string, 2)
	var group sync.WaitGroup

	group.Add(2)
	go func() {
		defer group.Done()
		if _, err := c.Call(context.Background(), "echo.slow", nil); err != nil {
			t.Errorf("slow call: %v", err)
			return
		}
		completions <- "slow"
	}()
	go func() {
		defer group.Done()
		// Give the slow call a head start on the wire.
		time.Sleep(30 * time.Millisecond)
		if _, err := c.Call(context.Background(), "echo.echo", map[string]any{"message": "quick"}); err != nil {
			t.Errorf("fast call: %v", err)
			return
		}
		completions <- "fast"
	}()
	group.Wait()

	first := testutil.RequireReceive(t, completions, time.Second, "first completion")
	if first != "fast" {
		t.Errorf("first completion = %q, want fast (slow call must not block it)", first)
	}
}

func TestCallErrorCarriesDaemonMessage(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	_, err := c.Call(context.Background(), "echo.fail", nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Call = %v, want *CallError", err)
	}
	if callErr.Message != "domain failure" {
		t.Errorf("Message = %q, want the daemon's error string", callErr.Message)
	}
	if callErr.Method != "echo.fail" {
		t.Errorf("Method = %q, want echo.fail", callErr.Method)
	}
}

func TestUnknownMethodIsCallError(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	_, err := c.Call(context.Background(), "no.such.method", nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Call = %v, want *CallError", err)
	}
	if !strings.Contains(callErr.Message, "no.such.method") {
		t.Errorf("Message = %q, want the literal method string", callErr.Message)
	}
}

func TestConnectErrorWhenDaemonMissing(t *testing.T) {
	_, err := Connect(filepath.Join(t.TempDir(), "absent.sock"))
	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("Connect = %v, want *ConnectError", err)
	}
}

func TestTimeoutAbandonsCallButKeepsConnection(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "echo.slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Call = %v, want DeadlineExceeded", err)
	}

	// The abandoned operation's late response is discarded by the
	// read loop; the connection keeps working for new calls.
	time.Sleep(250 * time.Millisecond)
	if _, err := c.Call(context.Background(), "echo.echo", map[string]any{"message": "still alive"}); err != nil {
		t.Errorf("call after timeout: %v", err)
	}
}

func TestProtocolErrorOnConnectionLoss(t *testing.T) {
	// A listener that accepts and immediately hangs up.
	socketPath := filepath.Join(t.TempDir(), "rude.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	c, err := Connect(socketPath, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	_, err = c.Call(context.Background(), "health", nil)
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("Call = %v, want *ProtocolError", err)
	}

	// The client is marked broken; further calls fail fast.
	_, err = c.Call(context.Background(), "health", nil)
	if !errors.As(err, &protocolErr) {
		t.Errorf("Call on broken client = %v, want *ProtocolError", err)
	}
}

func TestStopConvenience(t *testing.T) {
	socketPath := startDaemon(t)
	c := connect(t, socketPath)

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
