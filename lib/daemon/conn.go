// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fgp-foundation/fgp/lib/clock"
	"github.com/fgp-foundation/fgp/lib/protocol"
	"github.com/fgp-foundation/fgp/lib/service"
)

// connection multiplexes requests on one accepted socket connection.
// The serve loop decodes frames in arrival order and launches each
// operation in its own goroutine; completions write their response
// through the shared encoder, whose internal lock keeps frames whole.
// The pending WaitGroup is the connection's record of in-flight
// requests: serve does not close the connection until every launched
// operation has written its one response.
type connection struct {
	svc     service.Service
	logger  *slog.Logger
	clk     clock.Clock
	conn    net.Conn
	encoder *protocol.Encoder
	pending sync.WaitGroup
}

func newConnection(svc service.Service, logger *slog.Logger, clk clock.Clock, conn net.Conn) *connection {
	return &connection{
		svc:     svc,
		logger:  logger,
		clk:     clk,
		conn:    conn,
		encoder: protocol.NewEncoder(conn),
	}
}

// serve reads frames until the client disconnects, an unrecoverable
// framing error occurs, or the daemon drains. In-flight operations
// always finish and write their responses before the connection
// closes.
func (c *connection) serve(ctx context.Context) {
	defer func() {
		c.pending.Wait()
		c.conn.Close()
	}()

	// Unblock the read when draining starts. In-flight operations are
	// unaffected; only the intake of new frames stops.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.SetReadDeadline(time.Now())
		case <-readDone:
		}
	}()

	decoder := protocol.NewDecoder(c.conn)
	for {
		request, err := decoder.Decode()
		if err != nil {
			if c.reportDecodeFailure(err) {
				continue
			}
			return
		}

		if request.V != protocol.Version {
			c.respondError(request.ID, &service.VersionError{Got: request.V, Want: protocol.Version}, 0)
			continue
		}

		c.pending.Add(1)
		go c.dispatch(ctx, request)
	}
}

// reportDecodeFailure handles a failed Decode. It returns true when
// the serve loop may keep reading: the frame carried a recoverable id
// that has been answered with an error response. EOF, drain-induced
// read deadlines, and frames with no recoverable id end the
// connection.
func (c *connection) reportDecodeFailure(err error) bool {
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		if decodeErr.Recoverable {
			c.logger.Debug("malformed frame", "id", decodeErr.RawID, "error", decodeErr.Err)
			c.respondError(decodeErr.RawID, decodeErr, 0)
			return true
		}
		c.logger.Debug("closing connection: unrecoverable frame", "error", decodeErr.Err)
		return false
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("connection read ended", "error", err)
	}
	return false
}

// dispatch runs one operation and writes its single response. Runs in
// its own goroutine so sibling requests on the same connection are
// never delayed by this operation's latency.
func (c *connection) dispatch(ctx context.Context, request *protocol.Request) {
	defer c.pending.Done()

	start := c.clk.Now()
	result, err := c.svc.Dispatch(ctx, request.Method, request.Params)
	elapsed := c.serverMS(start)

	if err != nil {
		c.respondError(request.ID, err, elapsed)
		return
	}

	payload, err := protocol.MarshalResult(result)
	if err != nil {
		c.logger.Error("unmarshalable result", "method", request.Method, "error", err)
		c.respondError(request.ID, err, elapsed)
		return
	}
	c.respond(protocol.Success(request.ID, payload, elapsed))
}

func (c *connection) respondError(id string, err error, elapsed float64) {
	c.respond(protocol.Failure(id, err.Error(), elapsed))
}

func (c *connection) respond(response protocol.Response) {
	if err := c.encoder.Encode(response); err != nil {
		// The client is gone; nothing to deliver the response to.
		c.logger.Debug("writing response failed", "id", response.ID, "error", err)
	}
}

func (c *connection) serverMS(start time.Time) float64 {
	return float64(c.clk.Since(start).Microseconds()) / 1000.0
}
