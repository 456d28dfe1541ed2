// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fgp-foundation/fgp/lib/protocol"
	"github.com/fgp-foundation/fgp/lib/service"
)

// dialTimeout is the maximum time to wait for the Unix socket
// connection itself. This covers only the connect phase; per-call
// deadlines come from the caller's context.
const dialTimeout = 5 * time.Second

// maxResponseSize caps one response frame, matching the server's
// request cap for symmetry.
const maxResponseSize = 1024 * 1024

// ConnectError reports that the daemon socket could not be dialed:
// the daemon is not running, or the path is wrong.
type ConnectError struct {
	SocketPath string
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.SocketPath, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ProtocolError reports a broken connection or an unparsable
// response. Calls in flight when it happens all fail with it.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol failure: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// CallError is an application-level failure: the daemon processed
// the request and answered ok:false.
type CallError struct {
	Method  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %q failed: %s", e.Method, e.Message)
}

// Client is a multiplexing connection to one FGP daemon. Safe for
// concurrent use by multiple goroutines.
type Client struct {
	socketPath string
	conn       net.Conn
	logger     *slog.Logger

	// writeMu serializes request frames onto the connection.
	writeMu sync.Mutex

	// mu guards pending and closed. Each in-flight call owns a
	// buffered channel here, keyed by its generated id; the read
	// loop delivers the matching response and deletes the entry.
	mu      sync.Mutex
	pending map[string]chan outcome
	closed  bool
	readErr error
}

// outcome is what the read loop delivers to a waiting call: either
// the daemon's response or a connection-level error.
type outcome struct {
	response protocol.Response
	err      error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for connection-level events. Defaults
// to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Connect dials the daemon socket and starts the response reader. A
// dial failure is returned as a *ConnectError.
func Connect(socketPath string, options ...Option) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, &ConnectError{SocketPath: socketPath, Err: err}
	}

	c := &Client{
		socketPath: socketPath,
		conn:       conn,
		logger:     slog.Default(),
		pending:    make(map[string]chan outcome),
	}
	for _, option := range options {
		option(c)
	}

	go c.readLoop()
	return c, nil
}

// Close tears down the connection. In-flight calls fail with a
// *ProtocolError.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and waits for its response. The context
// bounds the wait: on expiry the call is abandoned client-side (the
// server is not told to stop, and its eventual response is
// discarded).
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	id := uuid.NewString()

	responseCh, err := c.register(id)
	if err != nil {
		return nil, err
	}
	defer c.deregister(id)

	request := protocol.Request{ID: id, V: protocol.Version, Method: method, Params: params}
	if err := c.writeRequest(request); err != nil {
		return nil, err
	}

	select {
	case result := <-responseCh:
		if result.err != nil {
			return nil, result.err
		}
		if !result.response.OK {
			return nil, &CallError{Method: method, Message: result.response.Error}
		}
		return result.response.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Health calls the health built-in and decodes its result.
func (c *Client) Health(ctx context.Context) (*service.HealthResult, error) {
	raw, err := c.Call(ctx, "health", nil)
	if err != nil {
		return nil, err
	}
	var health service.HealthResult
	if err := json.Unmarshal(raw, &health); err != nil {
		return nil, &ProtocolError{Err: fmt.Errorf("decoding health result: %w", err)}
	}
	return &health, nil
}

// Methods calls the methods built-in and decodes its result.
func (c *Client) Methods(ctx context.Context) (*service.MethodsResult, error) {
	raw, err := c.Call(ctx, "methods", nil)
	if err != nil {
		return nil, err
	}
	var listing service.MethodsResult
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, &ProtocolError{Err: fmt.Errorf("decoding methods result: %w", err)}
	}
	return &listing, nil
}

// Stop calls the stop built-in. A nil error means the daemon
// acknowledged and is shutting down.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.Call(ctx, "stop", nil)
	return err
}

// register creates the pending-call entry for a new id.
func (c *Client) register(id string) (chan outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &ProtocolError{Err: fmt.Errorf("connection closed: %w", c.readErr)}
	}
	responseCh := make(chan outcome, 1)
	c.pending[id] = responseCh
	return responseCh, nil
}

func (c *Client) deregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// writeRequest marshals and writes one frame under the write lock so
// concurrent calls never interleave bytes.
func (c *Client) writeRequest(request protocol.Request) error {
	frame, err := json.Marshal(request)
	if err != nil {
		return &ProtocolError{Err: fmt.Errorf("marshaling request: %w", err)}
	}
	frame = append(frame, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return &ProtocolError{Err: fmt.Errorf("writing request: %w", err)}
	}
	return nil
}

// readLoop routes response frames to pending calls by id until the
// connection ends, then fails whatever is still pending.
func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var response protocol.Response
		if err := json.Unmarshal(line, &response); err != nil {
			c.fail(fmt.Errorf("unparsable response frame: %w", err))
			c.conn.Close()
			return
		}

		c.mu.Lock()
		responseCh, waiting := c.pending[response.ID]
		if waiting {
			delete(c.pending, response.ID)
		}
		c.mu.Unlock()

		if !waiting {
			// The caller gave up on this id (timeout) or it is a
			// duplicate. Discard.
			c.logger.Debug("discarding response with no pending call", "id", response.ID)
			continue
		}
		responseCh <- outcome{response: response}
	}

	err := scanner.Err()
	if err == nil {
		err = errors.New("connection closed by daemon")
	}
	c.fail(err)
}

// fail marks the client broken and releases every pending call with
// a ProtocolError.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.readErr = err

	for id, responseCh := range c.pending {
		responseCh <- outcome{err: &ProtocolError{Err: err}}
		delete(c.pending, id)
	}
}
