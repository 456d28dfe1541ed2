// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fgp-foundation/fgp/lib/clock"
	"github.com/fgp-foundation/fgp/lib/service"
)

// ErrAlreadyRunning reports that another live daemon answered a probe
// on the configured socket. Starting must fail rather than displace
// it.
var ErrAlreadyRunning = errors.New("daemon already running")

// probeTimeout bounds the health probe against an existing socket
// during startup. A live daemon answers a health call in well under a
// second; anything slower is treated as dead.
const probeTimeout = 2 * time.Second

// Server runs one FGP service on one Unix socket.
type Server struct {
	// SocketPath is where the daemon listens. The parent directory is
	// created if missing.
	SocketPath string

	// Service is the operation registry requests dispatch into.
	Service service.Service

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// Clock overrides wall-clock time in tests. If nil, clock.Real()
	// is used.
	Clock clock.Clock

	ready     chan struct{}
	readyOnce sync.Once

	// activeConnections tracks in-flight connection handlers so a
	// drain waits for every pending operation's response to be
	// written before the socket is removed.
	activeConnections sync.WaitGroup
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) clock() clock.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return clock.Real()
}

// Ready returns a channel that closes once the listener is accepting
// connections. Tests and supervisors use it instead of polling the
// socket path.
func (s *Server) Ready() <-chan struct{} {
	s.readyOnce.Do(func() {
		s.ready = make(chan struct{})
	})
	return s.ready
}

// stopInstaller is implemented by registries whose stop built-in
// needs a way to begin daemon shutdown.
type stopInstaller interface {
	OnStop(context.CancelFunc)
}

// Serve claims the socket, accepts connections, and dispatches
// requests until ctx is cancelled or the stop built-in fires. It
// returns after the drain completes and the socket file is removed.
// Startup failures (bind error, live daemon on the socket) are
// returned immediately.
func (s *Server) Serve(ctx context.Context) error {
	logger := s.logger()

	if err := s.claimSocket(ctx); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.SocketPath, err)
	}

	metadataFile := MetadataPath(s.SocketPath)
	if err := WriteMetadata(metadataFile, s.Service.Version(), s.clock().Now()); err != nil {
		// Metadata is diagnostic, not load-bearing. The daemon still
		// serves without it.
		logger.Warn("writing metadata file failed", "path", metadataFile, "error", err)
	}

	defer func() {
		listener.Close()
		os.Remove(s.SocketPath)
		os.Remove(metadataFile)
	}()

	// The stop built-in and context cancellation share one drain
	// path.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if installer, ok := s.Service.(stopInstaller); ok {
		installer.OnStop(cancel)
	}

	// Unblock Accept when draining starts.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("daemon listening",
		"service", s.Service.Name(),
		"version", s.Service.Version(),
		"socket", s.SocketPath,
	)
	s.Ready()
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			logger.Error("accept failed", "error", err)
			continue
		}

		logPeer(logger, conn)

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			newConnection(s.Service, logger, s.clock(), conn).serve(ctx)
		}()
	}

	logger.Info("daemon draining", "service", s.Service.Name())
	s.activeConnections.Wait()
	logger.Info("daemon stopped", "service", s.Service.Name())
	return nil
}

// claimSocket prepares the socket path: create the parent directory,
// and if a socket file already exists decide between "another daemon
// is alive, abort" and "stale leftover, remove and proceed".
func (s *Server) claimSocket(ctx context.Context) error {
	parent := filepath.Dir(s.SocketPath)
	if err := os.MkdirAll(parent, 0o700); err != nil {
		return fmt.Errorf("creating socket directory %s: %w", parent, err)
	}

	if _, err := os.Stat(s.SocketPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("checking socket %s: %w", s.SocketPath, err)
	}

	if s.probeSocket(ctx) {
		return fmt.Errorf("%w: socket %s answered a health probe", ErrAlreadyRunning, s.SocketPath)
	}

	s.logger().Info("removing stale socket", "path", s.SocketPath)
	if err := os.Remove(s.SocketPath); err != nil {
		return fmt.Errorf("removing stale socket %s: %w", s.SocketPath, err)
	}
	os.Remove(MetadataPath(s.SocketPath))
	return nil
}

// probeSocket reports whether a live daemon answers a health call on
// the existing socket.
func (s *Server) probeSocket(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	alive, err := ProbeHealth(probeCtx, s.SocketPath)
	if err != nil {
		return false
	}
	return alive
}
