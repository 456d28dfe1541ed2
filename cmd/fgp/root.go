// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/fgp-foundation/fgp/lib/cli"
	"github.com/fgp-foundation/fgp/lib/client"
	"github.com/fgp-foundation/fgp/lib/config"
	"github.com/fgp-foundation/fgp/lib/supervisor"
	"github.com/fgp-foundation/fgp/lib/version"
)

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:        "fgp",
		Summary:     "Manage local FGP daemons",
		Description: "fgp installs, runs, and talks to local daemons over their Unix sockets.",
		Subcommands: []*cli.Command{
			installCommand(),
			startCommand(),
			stopCommand(),
			statusCommand(),
			callCommand(),
			methodsCommand(),
			logsCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Printf("fgp %s\n", version.Info())
			return nil
		},
	}
}

// newSupervisor loads configuration and builds the supervisor every
// daemon-management command starts from.
func newSupervisor() (*supervisor.Supervisor, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	s := supervisor.New(cfg)
	return s, nil
}

// classify maps daemon-management errors to the documented exit
// codes: 2 daemon or method not found, 3 not running, 4 connection
// failure. Anything unrecognized passes through as a general error.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var notInstalled *supervisor.NotInstalledError
	if errors.As(err, &notInstalled) {
		return cli.Exitf(cli.ExitNotFound, "%v", notInstalled)
	}
	var notRunning *supervisor.NotRunningError
	if errors.As(err, &notRunning) {
		return cli.Exitf(cli.ExitNotRunning, "%v", notRunning)
	}
	var connectErr *client.ConnectError
	if errors.As(err, &connectErr) {
		return cli.Exitf(cli.ExitNotRunning, "%v", connectErr)
	}
	var protocolErr *client.ProtocolError
	if errors.As(err, &protocolErr) {
		return cli.Exitf(cli.ExitConnectFailed, "%v", protocolErr)
	}
	return err
}
