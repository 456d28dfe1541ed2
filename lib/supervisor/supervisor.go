// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fgp-foundation/fgp/lib/client"
	"github.com/fgp-foundation/fgp/lib/clock"
	"github.com/fgp-foundation/fgp/lib/config"
	"github.com/fgp-foundation/fgp/lib/daemon"
)

// startupTimeout bounds how long Start waits for the spawned daemon
// to answer a health probe.
const startupTimeout = 10 * time.Second

// stopTimeout bounds the protocol stop call and the wait for the
// process to exit afterwards.
const stopTimeout = 10 * time.Second

// probeInterval is the poll spacing while waiting for a daemon to
// come up or go down.
const probeInterval = 100 * time.Millisecond

// NotInstalledError means no manifest exists for the named daemon.
type NotInstalledError struct {
	Name string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("daemon %q is not installed", e.Name)
}

// NotRunningError means the named daemon is installed but has no live
// process behind its socket.
type NotRunningError struct {
	Name string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("daemon %q is not running", e.Name)
}

// AlreadyRunningError means Start found a healthy daemon on the
// socket already.
type AlreadyRunningError struct {
	Name string
	PID  int
}

func (e *AlreadyRunningError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("daemon %q is already running (pid %d)", e.Name, e.PID)
	}
	return fmt.Sprintf("daemon %q is already running", e.Name)
}

// Supervisor manages installed daemons under one FGP home.
type Supervisor struct {
	Config config.Config
	Logger *slog.Logger
	Clock  clock.Clock
}

// New returns a supervisor with the given configuration and defaults
// for the rest.
func New(cfg config.Config) *Supervisor {
	return &Supervisor{Config: cfg, Logger: slog.Default(), Clock: clock.Real()}
}

// Install writes the manifest for the named daemon, creating its
// service directory. Reinstalling overwrites the manifest.
func (s *Supervisor) Install(name string, manifest Manifest) error {
	if err := config.ValidateServiceName(name); err != nil {
		return err
	}
	if err := manifest.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Config.ServiceDir(name), 0o700); err != nil {
		return fmt.Errorf("creating service directory: %w", err)
	}
	if err := writeManifest(s.Config.ManifestPath(name), manifest); err != nil {
		return err
	}
	s.Logger.Info("daemon installed", "name", name, "binary", manifest.Binary)
	return nil
}

// List returns the names of all installed daemons, sorted.
func (s *Supervisor) List() ([]string, error) {
	entries, err := os.ReadDir(s.Config.ServicesDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading services directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if manifestExists(s.Config.ManifestPath(entry.Name())) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Start spawns the named daemon detached and waits until it answers a
// health probe. Returns the child pid.
func (s *Supervisor) Start(ctx context.Context, name string) (int, error) {
	manifest, err := s.loadManifestFor(name)
	if err != nil {
		return 0, err
	}

	socketPath := s.Config.SocketPath(name)
	if pid := s.livePID(ctx, name); pid != 0 {
		return 0, &AlreadyRunningError{Name: name, PID: pid}
	}

	env := os.Environ()
	for key, value := range manifest.Env {
		env = append(env, key+"="+value)
	}
	env = append(env, "FGP_HOME="+s.Config.Home)

	pid, err := StartDetached(manifest.Binary, manifest.Args, env, s.Config.LogPath(name))
	if err != nil {
		return 0, err
	}
	s.Logger.Info("daemon spawned", "name", name, "pid", pid)

	if err := s.awaitHealthy(ctx, socketPath); err != nil {
		return pid, fmt.Errorf("daemon %q did not become healthy: %w", name, err)
	}
	return pid, nil
}

// Stop shuts the named daemon down: a protocol stop call when the
// socket answers, SIGTERM from the pid file otherwise. It waits for
// the process to exit.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if err := config.ValidateServiceName(name); err != nil {
		return err
	}
	if !manifestExists(s.Config.ManifestPath(name)) {
		return &NotInstalledError{Name: name}
	}

	socketPath := s.Config.SocketPath(name)
	pid := 0
	if metadata, err := daemon.ReadMetadata(daemon.MetadataPath(socketPath)); err == nil {
		pid = metadata.PID
	}

	stopped := false
	if c, err := client.Connect(socketPath, client.WithLogger(s.Logger)); err == nil {
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		err := c.Stop(stopCtx)
		cancel()
		c.Close()
		if err == nil {
			stopped = true
			s.Logger.Info("stop acknowledged", "name", name)
		} else {
			s.Logger.Warn("protocol stop failed", "name", name, "error", err)
		}
	}

	if stopped {
		// The daemon removes its socket as the last step of draining;
		// that is the signal shutdown completed.
		if err := s.awaitSocketGone(ctx, socketPath); err != nil {
			return fmt.Errorf("daemon %q did not shut down: %w", name, err)
		}
		return nil
	}

	if pid == 0 || !daemon.ProcessAlive(pid) {
		return &NotRunningError{Name: name}
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("signaling pid %d: %w", pid, err)
	}
	s.Logger.Info("sent SIGTERM", "name", name, "pid", pid)
	if err := s.awaitExit(ctx, pid); err != nil {
		return fmt.Errorf("daemon %q did not exit: %w", name, err)
	}
	return nil
}

// Status describes one installed daemon.
type Status struct {
	Name        string
	Description string
	Installed   bool
	Running     bool
	Healthy     bool
	Degraded    bool
	PID         int
	Version     string
	UptimeSecs  int64
}

// Status probes the named daemon.
func (s *Supervisor) Status(ctx context.Context, name string) (*Status, error) {
	if err := config.ValidateServiceName(name); err != nil {
		return nil, err
	}

	status := &Status{Name: name}
	manifest, err := s.loadManifestFor(name)
	if err != nil {
		var notInstalled *NotInstalledError
		if errors.As(err, &notInstalled) {
			return status, nil
		}
		return nil, err
	}
	status.Installed = true
	status.Description = manifest.Description

	socketPath := s.Config.SocketPath(name)
	if metadata, err := daemon.ReadMetadata(daemon.MetadataPath(socketPath)); err == nil {
		if daemon.ProcessAlive(metadata.PID) {
			status.Running = true
			status.PID = metadata.PID
			status.Version = metadata.Version
		}
	}

	c, err := client.Connect(socketPath, client.WithLogger(s.Logger))
	if err != nil {
		return status, nil
	}
	defer c.Close()

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	health, err := c.Health(healthCtx)
	if err != nil {
		return status, nil
	}

	status.Running = true
	status.Healthy = health.Status == "healthy"
	status.Degraded = health.Status == "degraded"
	status.Version = health.Version
	status.UptimeSecs = health.UptimeSecs
	return status, nil
}

// StatusAll probes every installed daemon.
func (s *Supervisor) StatusAll(ctx context.Context) ([]*Status, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	statuses := make([]*Status, 0, len(names))
	for _, name := range names {
		status, err := s.Status(ctx, name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *Supervisor) loadManifestFor(name string) (Manifest, error) {
	if err := config.ValidateServiceName(name); err != nil {
		return Manifest{}, err
	}
	manifest, err := loadManifest(s.Config.ManifestPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, &NotInstalledError{Name: name}
	}
	if err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// livePID returns the pid of a healthy daemon on the socket, or 0.
func (s *Supervisor) livePID(ctx context.Context, name string) int {
	socketPath := s.Config.SocketPath(name)
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	healthy, err := daemon.ProbeHealth(probeCtx, socketPath)
	if err != nil || !healthy {
		return 0
	}
	if metadata, err := daemon.ReadMetadata(daemon.MetadataPath(socketPath)); err == nil {
		return metadata.PID
	}
	return -1
}

// awaitHealthy polls the socket until it answers a health probe.
func (s *Supervisor) awaitHealthy(ctx context.Context, socketPath string) error {
	deadline := s.Clock.Now().Add(startupTimeout)
	for {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		healthy, err := daemon.ProbeHealth(probeCtx, socketPath)
		cancel()
		if err == nil && healthy {
			return nil
		}
		if s.Clock.Now().After(deadline) {
			if err != nil {
				return err
			}
			return errors.New("health probe timed out")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Clock.After(probeInterval):
		}
	}
}

// awaitSocketGone polls until the socket file is removed.
func (s *Supervisor) awaitSocketGone(ctx context.Context, socketPath string) error {
	deadline := s.Clock.Now().Add(stopTimeout)
	for {
		if _, err := os.Stat(socketPath); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if s.Clock.Now().After(deadline) {
			return errors.New("socket still present")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Clock.After(probeInterval):
		}
	}
}

// awaitExit polls until the pid is gone.
func (s *Supervisor) awaitExit(ctx context.Context, pid int) error {
	deadline := s.Clock.Now().Add(stopTimeout)
	for daemon.ProcessAlive(pid) {
		if s.Clock.Now().After(deadline) {
			return fmt.Errorf("pid %d still alive", pid)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Clock.After(probeInterval):
		}
	}
	return nil
}
