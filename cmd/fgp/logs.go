// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/fgp-foundation/fgp/lib/cli"
	"github.com/fgp-foundation/fgp/lib/config"
)

func logsCommand() *cli.Command {
	var (
		lines  int
		follow bool
	)
	return &cli.Command{
		Name:    "logs",
		Summary: "Show a daemon's captured output",
		Usage:   "fgp logs <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("logs", pflag.ContinueOnError)
			flagSet.IntVarP(&lines, "lines", "n", 50, "number of trailing lines to print")
			flagSet.BoolVarP(&follow, "follow", "f", false, "keep printing as the file grows")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("logs takes exactly one daemon name")
			}
			name := args[0]
			if err := config.ValidateServiceName(name); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logPath := cfg.LogPath(name)

			raw, err := os.ReadFile(logPath)
			if err != nil {
				if _, statErr := os.Stat(cfg.ManifestPath(name)); statErr != nil {
					return cli.Exitf(cli.ExitNotFound, "daemon %q is not installed", name)
				}
				return fmt.Errorf("no log file for %q yet", name)
			}

			offset := printTail(os.Stdout, raw, lines)
			if !follow {
				return nil
			}
			return followFile(logPath, offset)
		},
	}
}

// printTail writes the last n lines of raw and returns the byte
// offset consumed, for follow mode to continue from.
func printTail(w io.Writer, raw []byte, n int) int64 {
	text := string(raw)
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" {
		return int64(len(raw))
	}
	all := strings.Split(trimmed, "\n")
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	for _, line := range all {
		fmt.Fprintln(w, line)
	}
	return int64(len(raw))
}

// followFile polls the log file and prints appended bytes until
// interrupted. Polling keeps this dependency-free and is plenty for
// an operator tailing a local daemon.
func followFile(path string, offset int64) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(250 * time.Millisecond):
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() < offset {
			// Truncated or rotated; start over from the top.
			offset = 0
		}
		if info.Size() == offset {
			continue
		}

		file, err := os.Open(path)
		if err != nil {
			continue
		}
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			continue
		}
		copied, err := io.Copy(os.Stdout, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("reading log file: %w", err)
		}
		offset += copied
	}
}
