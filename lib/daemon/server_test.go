// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fgp-foundation/fgp/lib/protocol"
	"github.com/fgp-foundation/fgp/lib/service"
	"github.com/fgp-foundation/fgp/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "daemon.sock")
}

// newTestService builds an "echo" registry with a fast and a
// deliberately slow operation.
func newTestService() *service.Registry {
	registry := service.NewRegistry("echo", "0.9.0")
	registry.Register(service.MethodInfo{
		Name:        "echo.fast",
		Description: "Return immediately",
	}, func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"speed": "fast"}, nil
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
		return nil, errors.New("upstream exploded")
	})
	return registry
}

// startServer runs a daemon in the background. The returned wait
// function blocks until Serve returns and yields its error; it is
// safe to call more than once (the cleanup also calls it).
func startServer(t *testing.T, svc service.Service) (string, context.CancelFunc, func() error) {
	t.Helper()
	socketPath := testSocketPath(t)
	server := &Server{
		SocketPath: socketPath,
		Service:    svc,
		Logger:     testLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")

	var waitOnce sync.Once
	var result error
	wait := func() error {
		waitOnce.Do(func() {
			result = testutil.RequireReceive(t, serveErr, 5*time.Second, "server shutdown")
		})
		return result
	}
	t.Cleanup(func() {
		cancel()
		wait()
	})
	return socketPath, cancel, wait
}

// dialDaemon opens a raw protocol connection and returns the conn
// plus a channel of decoded responses read by a background goroutine.
func dialDaemon(t *testing.T, socketPath string) (net.Conn, <-chan protocol.Response) {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("dialing daemon: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	responses := make(chan protocol.Response, 16)
	go func() {
		defer close(responses)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var response protocol.Response
			if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
				return
			}
			responses <- response
		}
	}()
	return conn, responses
}

func sendFrame(t *testing.T, conn net.Conn, request protocol.Request) {
	t.Helper()
	frame, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	if _, err := conn.Write(append(frame, '\n')); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
}

func TestHealthRoundTrip(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	sendFrame(t, conn, protocol.Request{ID: "1", V: 1, Method: "health"})
	response := testutil.RequireReceive(t, responses, 5*time.Second, "health response")

	if response.ID != "1" {
		t.Errorf("ID = %q, want 1", response.ID)
	}
	if !response.OK {
		t.Fatalf("ok = false, error: %s", response.Error)
	}
	if response.Meta.ProtocolV != protocol.Version {
		t.Errorf("protocol_v = %d, want %d", response.Meta.ProtocolV, protocol.Version)
	}

	var health service.HealthResult
	if err := json.Unmarshal(response.Result, &health); err != nil {
		t.Fatalf("unmarshaling health result: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if health.UptimeSecs < 0 || health.UptimeSecs > 60 {
		t.Errorf("uptime_secs = %d, want a small integer", health.UptimeSecs)
	}
	if health.Version != "0.9.0" {
		t.Errorf("version = %q, want 0.9.0", health.Version)
	}
}

func TestSlowOperationDoesNotDelayFastOne(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	// A (slow) is sent before B (fast) on the same connection.
	sendFrame(t, conn, protocol.Request{ID: "A", V: 1, Method: "echo.slow"})
	sendFrame(t, conn, protocol.Request{ID: "B", V: 1, Method: "echo.fast"})

	first := testutil.RequireReceive(t, responses, 5*time.Second, "first response")
	second := testutil.RequireReceive(t, responses, 5*time.Second, "second response")

	if first.ID != "B" {
		t.Errorf("first response id = %q, want B (fast op must not wait behind slow op)", first.ID)
	}
	if second.ID != "A" {
		t.Errorf("second response id = %q, want A", second.ID)
	}
	for _, response := range []protocol.Response{first, second} {
		if !response.OK {
			t.Errorf("response %s failed: %s", response.ID, response.Error)
		}
	}

	// Exactly one response per id, never a duplicate.
	testutil.RequireNoReceive(t, responses, 100*time.Millisecond, "no extra responses")
}

func TestManyInterleavedRequests(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	const count = 40
	for i := 0; i < count; i++ {
		method := "echo.fast"
		if i%4 == 0 {
			method = "echo.slow"
		}
		sendFrame(t, conn, protocol.Request{ID: fmt.Sprintf("r%d", i), V: 1, Method: method})
	}

	seen := make(map[string]bool, count)
	for i := 0; i < count; i++ {
		response := testutil.RequireReceive(t, responses, 5*time.Second, "response %d", i)
		if seen[response.ID] {
			t.Fatalf("duplicate response for id %q", response.ID)
		}
		seen[response.ID] = true
	}
	if len(seen) != count {
		t.Errorf("got %d distinct responses, want %d", len(seen), count)
	}
}

func TestUnknownMethodKeepsConnectionOpen(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	sendFrame(t, conn, protocol.Request{ID: "2", V: 1, Method: "does.not.exist"})
	response := testutil.RequireReceive(t, responses, 5*time.Second, "error response")

	if response.OK {
		t.Fatal("unknown method must produce ok:false")
	}
	if response.Error != "Unknown method: does.not.exist" {
		t.Errorf("error = %q, want unknown-method message with literal method", response.Error)
	}

	// The connection survives and serves the next request.
	sendFrame(t, conn, protocol.Request{ID: "3", V: 1, Method: "health"})
	next := testutil.RequireReceive(t, responses, 5*time.Second, "health after error")
	if next.ID != "3" || !next.OK {
		t.Errorf("connection did not survive an unknown-method error: %+v", next)
	}
}

func TestVersionMismatch(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	sendFrame(t, conn, protocol.Request{ID: "v", V: 2, Method: "health"})
	response := testutil.RequireReceive(t, responses, 5*time.Second, "version error")

	if response.OK {
		t.Fatal("version mismatch must produce ok:false")
	}
	if !strings.Contains(response.Error, "version") {
		t.Errorf("error = %q, want a version-related message", response.Error)
	}
	if response.ID != "v" {
		t.Errorf("ID = %q, want v", response.ID)
	}
}

func TestOperationFailureIsApplicationLevel(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	sendFrame(t, conn, protocol.Request{ID: "f", V: 1, Method: "echo.fail"})
	response := testutil.RequireReceive(t, responses, 5*time.Second, "failure response")

	if response.OK {
		t.Fatal("failing operation must produce ok:false")
	}
	if response.Error != "upstream exploded" {
		t.Errorf("error = %q, want the handler's message", response.Error)
	}
	if len(response.Result) != 0 {
		t.Error("failure response must not carry a result")
	}
}

func TestShorthandMethodOverWire(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	sendFrame(t, conn, protocol.Request{ID: "s", V: 1, Method: "fast"})
	response := testutil.RequireReceive(t, responses, 5*time.Second, "shorthand response")
	if !response.OK {
		t.Fatalf("shorthand call failed: %s", response.Error)
	}
}

func TestRecoverableFramingError(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	// Valid JSON, id present, method missing: the daemon answers
	// with an error addressed to the recovered id.
	if _, err := conn.Write([]byte(`{"id":"m","v":1}` + "\n")); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
	response := testutil.RequireReceive(t, responses, 5*time.Second, "framing error response")
	if response.OK || response.ID != "m" {
		t.Errorf("response = %+v, want ok:false addressed to id m", response)
	}

	// Connection stays usable.
	sendFrame(t, conn, protocol.Request{ID: "after", V: 1, Method: "health"})
	next := testutil.RequireReceive(t, responses, 5*time.Second, "health after framing error")
	if next.ID != "after" {
		t.Errorf("ID = %q, want after", next.ID)
	}
}

func TestUnrecoverableFrameClosesConnection(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())
	conn, responses := dialDaemon(t, socketPath)

	if _, err := conn.Write([]byte("not-json\n")); err != nil {
		t.Fatalf("writing frame: %v", err)
	}

	// Documented behavior: no response, connection closed. The read
	// goroutine observes EOF and closes the channel.
	select {
	case response, open := <-responses:
		if open {
			t.Fatalf("unexpected response to unparseable frame: %+v", response)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not closed after an unrecoverable frame")
	}
}

func TestStopDrainsInFlightWork(t *testing.T) {
	svc := newTestService()
	socketPath, _, wait := startServer(t, svc)

	// Connection 1 starts a slow operation.
	slowConn, slowResponses := dialDaemon(t, socketPath)
	sendFrame(t, slowConn, protocol.Request{ID: "slow", V: 1, Method: "echo.slow"})

	// Give the daemon a moment to decode and launch the slow op.
	time.Sleep(50 * time.Millisecond)

	// Connection 2 requests shutdown.
	stopConn, stopResponses := dialDaemon(t, socketPath)
	sendFrame(t, stopConn, protocol.Request{ID: "stop", V: 1, Method: "stop"})

	ack := testutil.RequireReceive(t, stopResponses, 5*time.Second, "stop acknowledgement")
	if !ack.OK {
		t.Fatalf("stop failed: %s", ack.Error)
	}

	// The slow operation's response is still delivered.
	slow := testutil.RequireReceive(t, slowResponses, 5*time.Second, "slow response during drain")
	if slow.ID != "slow" || !slow.OK {
		t.Errorf("slow response = %+v, want ok response for id slow", slow)
	}

	if err := wait(); err != nil {
		t.Errorf("Serve returned %v, want nil on clean stop", err)
	}

	// Clean stop removes the socket and metadata files.
	if _, err := os.Stat(socketPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket file still present after stop: %v", err)
	}
	if _, err := os.Stat(MetadataPath(socketPath)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("metadata file still present after stop: %v", err)
	}
}

func TestSecondDaemonRefusesLiveSocket(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())

	second := &Server{
		SocketPath: socketPath,
		Service:    newTestService(),
		Logger:     testLogger(),
	}
	err := second.Serve(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Serve = %v, want ErrAlreadyRunning", err)
	}
}

func TestStaleSocketIsRemoved(t *testing.T) {
	socketPath := testSocketPath(t)

	// A leftover file nobody answers on.
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatalf("planting stale socket: %v", err)
	}

	server := &Server{
		SocketPath: socketPath,
		Service:    newTestService(),
		Logger:     testLogger(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready despite stale socket")

	cancel()
	if err := testutil.RequireReceive(t, serveErr, 5*time.Second, "server exit"); err != nil {
		t.Errorf("Serve = %v, want nil", err)
	}
}

func TestMetadataFileWritten(t *testing.T) {
	socketPath, _, _ := startServer(t, newTestService())

	metadata, err := ReadMetadata(MetadataPath(socketPath))
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if metadata.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", metadata.PID, os.Getpid())
	}
	if metadata.Version != "0.9.0" {
		t.Errorf("Version = %q, want 0.9.0", metadata.Version)
	}
	if !ProcessAlive(metadata.PID) {
		t.Error("ProcessAlive(our own pid) = false")
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Error("current process reported dead")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Error("non-positive pids must report dead")
	}
}
