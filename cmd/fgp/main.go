// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/fgp-foundation/fgp/lib/cli"
)

func main() {
	if err := run(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Message != "" {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.ResolveExitCode(err))
	}
}

func run() error {
	slog.SetDefault(newLogger())
	return rootCommand().Execute(os.Args[1:])
}

// newLogger picks the handler by where stderr goes: text for a
// terminal, JSON when piped so scripts and the bridge can parse it.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelWarn}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
