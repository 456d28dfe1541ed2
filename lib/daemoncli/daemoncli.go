// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package daemoncli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/fgp-foundation/fgp/lib/cli"
	"github.com/fgp-foundation/fgp/lib/client"
	"github.com/fgp-foundation/fgp/lib/config"
	"github.com/fgp-foundation/fgp/lib/daemon"
	"github.com/fgp-foundation/fgp/lib/service"
	"github.com/fgp-foundation/fgp/lib/supervisor"
	"github.com/fgp-foundation/fgp/lib/version"
)

// startupTimeout bounds how long a detached start waits for the
// daemon to answer a health probe.
const startupTimeout = 10 * time.Second

// App wires one registry into the shared daemon command surface.
type App struct {
	Registry *service.Registry

	// Out receives human-facing output. Defaults to os.Stdout.
	Out io.Writer

	socket     string
	logLevel   string
	foreground bool
}

// Main executes the daemon CLI and exits the process.
func Main(registry *service.Registry) {
	app := &App{Registry: registry, Out: os.Stdout}
	if err := app.Command().Execute(os.Args[1:]); err != nil {
		code := cli.ResolveExitCode(err)
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Message != "" {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(code)
	}
}

// Command builds the root command tree for the daemon binary.
func (a *App) Command() *cli.Command {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	name := a.Registry.Name()

	return &cli.Command{
		Name:    name,
		Summary: fmt.Sprintf("%s daemon", name),
		Subcommands: []*cli.Command{
			{
				Name:    "run",
				Summary: "Serve in the foreground",
				Flags:   a.serveFlags,
				Run: func(args []string) error {
					return a.serve()
				},
			},
			{
				Name:    "start",
				Summary: "Start the daemon (detached unless --foreground)",
				Flags: func() *pflag.FlagSet {
					flagSet := a.serveFlags()
					flagSet.BoolVar(&a.foreground, "foreground", false, "stay attached instead of daemonizing")
					return flagSet
				},
				Run: func(args []string) error {
					if a.foreground {
						return a.serve()
					}
					return a.startDetached()
				},
			},
			{
				Name:    "stop",
				Summary: "Stop the running daemon",
				Flags:   a.socketFlags,
				Run: func(args []string) error {
					return a.stop()
				},
			},
			{
				Name:    "status",
				Summary: "Show whether the daemon is running",
				Flags:   a.socketFlags,
				Run: func(args []string) error {
					return a.status()
				},
			},
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(a.Out, "%s %s (%s)\n", name, a.Registry.Version(), version.Info())
					return nil
				},
			},
		},
	}
}

func (a *App) serveFlags() *pflag.FlagSet {
	flagSet := a.socketFlags()
	flagSet.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	return flagSet
}

func (a *App) socketFlags() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(a.Registry.Name(), pflag.ContinueOnError)
	flagSet.StringVar(&a.socket, "socket", "", "socket path override")
	return flagSet
}

// socketPath resolves the effective socket path: the --socket
// override when given, the home convention otherwise.
func (a *App) socketPath(cfg config.Config) string {
	if a.socket != "" {
		return a.socket
	}
	return cfg.SocketPath(a.Registry.Name())
}

// serve runs the daemon in the foreground until a signal or a
// protocol stop.
func (a *App) serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	socketPath := a.socketPath(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &daemon.Server{
		SocketPath: socketPath,
		Service:    a.Registry,
		Logger:     logger,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()

	select {
	case err := <-serveErr:
		return err
	case <-server.Ready():
	}

	a.printBanner(socketPath)
	return <-serveErr
}

// printBanner announces the listening daemon and its methods, the
// first thing an operator sees in the foreground or the log file.
func (a *App) printBanner(socketPath string) {
	fmt.Fprintf(a.Out, "%s %s listening on %s\n", a.Registry.Name(), a.Registry.Version(), socketPath)
	fmt.Fprintf(a.Out, "methods:\n")
	for _, method := range a.Registry.Methods() {
		if method.Description != "" {
			fmt.Fprintf(a.Out, "  %-24s %s\n", method.Name, method.Description)
		} else {
			fmt.Fprintf(a.Out, "  %s\n", method.Name)
		}
	}
}

// startDetached re-executes this binary with the run subcommand in
// its own session and waits for it to come up.
func (a *App) startDetached() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	socketPath := a.socketPath(cfg)

	probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	healthy, _ := daemon.ProbeHealth(probeCtx, socketPath)
	cancel()
	if healthy {
		return fmt.Errorf("%s is already running on %s", a.Registry.Name(), socketPath)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable: %w", err)
	}
	if err := os.MkdirAll(cfg.ServiceDir(a.Registry.Name()), 0o700); err != nil {
		return fmt.Errorf("creating service directory: %w", err)
	}

	args := []string{"run"}
	if a.socket != "" {
		args = append(args, "--socket", a.socket)
	}
	if a.logLevel != "" {
		args = append(args, "--log-level", a.logLevel)
	}

	logPath := cfg.LogPath(a.Registry.Name())
	pid, err := supervisor.StartDetached(executable, args, os.Environ(), logPath)
	if err != nil {
		return err
	}

	if err := a.awaitHealthy(socketPath); err != nil {
		return fmt.Errorf("%s (pid %d) did not become healthy, check %s: %w",
			a.Registry.Name(), pid, logPath, err)
	}
	fmt.Fprintf(a.Out, "%s started (pid %d)\n", a.Registry.Name(), pid)
	return nil
}

func (a *App) awaitHealthy(socketPath string) error {
	deadline := time.Now().Add(startupTimeout)
	for {
		probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		healthy, err := daemon.ProbeHealth(probeCtx, socketPath)
		cancel()
		if err == nil && healthy {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return err
			}
			return errors.New("health probe timed out")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// stop asks the running daemon to shut down.
func (a *App) stop() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	socketPath := a.socketPath(cfg)

	c, err := client.Connect(socketPath)
	if err != nil {
		return cli.Exitf(cli.ExitNotRunning, "%s is not running", a.Registry.Name())
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		return cli.Exitf(cli.ExitConnectFailed, "stopping %s: %v", a.Registry.Name(), err)
	}
	fmt.Fprintf(a.Out, "%s stopping\n", a.Registry.Name())
	return nil
}

// status reports daemon health, exiting 3 when nothing is running.
func (a *App) status() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	socketPath := a.socketPath(cfg)

	c, err := client.Connect(socketPath)
	if err != nil {
		return cli.Exitf(cli.ExitNotRunning, "%s is not running", a.Registry.Name())
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := c.Health(ctx)
	if err != nil {
		return cli.Exitf(cli.ExitConnectFailed, "health check failed: %v", err)
	}

	fmt.Fprintf(a.Out, "%s: %s (version %s, up %ds)\n",
		a.Registry.Name(), health.Status, health.Version, health.UptimeSecs)
	if metadata, err := daemon.ReadMetadata(daemon.MetadataPath(socketPath)); err == nil {
		fmt.Fprintf(a.Out, "pid: %d\n", metadata.PID)
	}
	return nil
}
