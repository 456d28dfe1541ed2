// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fgp-foundation/fgp/lib/cli"
	"github.com/fgp-foundation/fgp/lib/supervisor"
)

func installCommand() *cli.Command {
	var (
		binary      string
		args        []string
		env         []string
		description string
	)
	return &cli.Command{
		Name:    "install",
		Summary: "Register a daemon binary under a name",
		Usage:   "fgp install <name> --binary <path> [flags]",
		Examples: []cli.Example{
			{
				Description: "Install the echo daemon",
				Command:     "fgp install echo --binary /usr/local/bin/fgp-echo-daemon --arg run",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("install", pflag.ContinueOnError)
			flagSet.StringVar(&binary, "binary", "", "path to the daemon executable (required)")
			flagSet.StringArrayVar(&args, "arg", nil, "argument passed to the binary (repeatable)")
			flagSet.StringArrayVar(&env, "env", nil, "KEY=VALUE added to the daemon environment (repeatable)")
			flagSet.StringVar(&description, "description", "", "one-line description for status output")
			return flagSet
		},
		Run: func(positional []string) error {
			if len(positional) != 1 {
				return fmt.Errorf("install takes exactly one daemon name")
			}
			if binary == "" {
				return fmt.Errorf("--binary is required")
			}

			absolute, err := filepath.Abs(binary)
			if err != nil {
				return fmt.Errorf("resolving binary path: %w", err)
			}
			if _, err := os.Stat(absolute); err != nil {
				return fmt.Errorf("binary %s: %w", absolute, err)
			}

			envMap := make(map[string]string, len(env))
			for _, entry := range env {
				key, value, found := strings.Cut(entry, "=")
				if !found || key == "" {
					return fmt.Errorf("invalid --env %q, want KEY=VALUE", entry)
				}
				envMap[key] = value
			}

			s, err := newSupervisor()
			if err != nil {
				return err
			}
			name := positional[0]
			if err := s.Install(name, supervisor.Manifest{
				Binary:      absolute,
				Args:        args,
				Env:         envMap,
				Description: description,
			}); err != nil {
				return err
			}
			fmt.Printf("installed %s\n", name)
			return nil
		},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:    "start",
		Summary: "Start an installed daemon",
		Usage:   "fgp start <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("start takes exactly one daemon name")
			}
			s, err := newSupervisor()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			pid, err := s.Start(ctx, args[0])
			if err != nil {
				var alreadyRunning *supervisor.AlreadyRunningError
				if errors.As(err, &alreadyRunning) {
					fmt.Println(alreadyRunning.Error())
					return nil
				}
				return classify(err)
			}
			fmt.Printf("started %s (pid %d)\n", args[0], pid)
			return nil
		},
	}
}

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:    "stop",
		Summary: "Stop a running daemon",
		Usage:   "fgp stop <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("stop takes exactly one daemon name")
			}
			s, err := newSupervisor()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := s.Stop(ctx, args[0]); err != nil {
				return classify(err)
			}
			fmt.Printf("stopped %s\n", args[0])
			return nil
		},
	}
}
