// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// fgp-mcp bridges MCP clients onto local FGP daemons: it speaks
// JSON-RPC 2.0 over newline-delimited stdio and translates tools/list
// and tools/call into daemon socket calls.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/fgp-foundation/fgp/lib/config"
	"github.com/fgp-foundation/fgp/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		daemons     []string
		logLevel    string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("fgp-mcp", pflag.ContinueOnError)
	flagSet.StringArrayVar(&daemons, "daemon", nil, "daemon to expose (repeatable; default: all installed)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("fgp-mcp %s\n", version.Info())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Stdout carries the JSON-RPC stream; everything else goes to
	// stderr as JSON for the host process's logs.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	for _, daemonName := range daemons {
		if err := config.ValidateServiceName(daemonName); err != nil {
			return err
		}
	}

	server := NewServer(cfg, daemons, logger)
	return server.Run(os.Stdin, os.Stdout)
}
