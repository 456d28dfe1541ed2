// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/fgp-foundation/fgp/lib/cli"
	"github.com/fgp-foundation/fgp/lib/client"
	"github.com/fgp-foundation/fgp/lib/config"
)

func callCommand() *cli.Command {
	var (
		paramsFlag string
		timeout    time.Duration
	)
	return &cli.Command{
		Name:    "call",
		Summary: "Invoke a method on a running daemon",
		Usage:   "fgp call <daemon>.<method> [params-json] [flags]",
		Examples: []cli.Example{
			{
				Description: "Call with inline parameters",
				Command:     `fgp call echo.echo '{"message": "hi"}'`,
			},
			{
				Description: "Parameters via flag, comments and trailing commas allowed",
				Command:     `fgp call echo.delay -p '{"ms": 100, /* wait */}'`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("call", pflag.ContinueOnError)
			flagSet.StringVarP(&paramsFlag, "params", "p", "", "method parameters as JSON (JSONC accepted)")
			flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "time to wait for the response")
			return flagSet
		},
		Run: func(args []string) error {
			daemonName, method, rest, err := splitTarget(args)
			if err != nil {
				return err
			}

			rawParams := paramsFlag
			if rawParams == "" && len(rest) > 0 {
				rawParams = rest[0]
				rest = rest[1:]
			}
			if len(rest) > 0 {
				return fmt.Errorf("unexpected argument %q", rest[0])
			}

			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			c, err := connectTo(cfg, daemonName)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			result, err := c.Call(ctx, method, params)
			if err != nil {
				var callErr *client.CallError
				if errors.As(err, &callErr) && strings.Contains(callErr.Message, "Unknown method") {
					return cli.Exitf(cli.ExitNotFound, "%s", callErr.Message)
				}
				return classify(err)
			}

			return printJSON(result)
		},
	}
}

func methodsCommand() *cli.Command {
	return &cli.Command{
		Name:    "methods",
		Summary: "List the methods a running daemon exposes",
		Usage:   "fgp methods <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("methods takes exactly one daemon name")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := connectTo(cfg, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			listing, err := c.Methods(ctx)
			if err != nil {
				return classify(err)
			}

			for _, method := range listing.Methods {
				if method.Description != "" {
					fmt.Printf("%s  %s\n", method.Name, method.Description)
				} else {
					fmt.Println(method.Name)
				}
				for _, param := range method.Params {
					required := ""
					if param.Required {
						required = " (required)"
					}
					fmt.Printf("    %s %s%s  %s\n", param.Name, param.Type, required, param.Description)
				}
			}
			return nil
		},
	}
}

// splitTarget resolves the call target from the argument list. Both
// "daemon.method" as one token and "daemon method" as two are
// accepted; the method string sent on the wire is always the full
// dotted form the daemon can resolve.
func splitTarget(args []string) (daemonName, method string, rest []string, err error) {
	if len(args) == 0 {
		return "", "", nil, fmt.Errorf("call target required, e.g. echo.echo")
	}

	target := args[0]
	if name, _, found := strings.Cut(target, "."); found {
		return name, target, args[1:], nil
	}
	if len(args) < 2 {
		return "", "", nil, fmt.Errorf("no method in target %q, use <daemon>.<method>", target)
	}
	return target, args[1], args[2:], nil
}

// parseParams interprets the raw parameter string as JSONC. Empty
// input means no parameters.
func parseParams(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &params); err != nil {
		return nil, fmt.Errorf("parsing params: %w", err)
	}
	return params, nil
}

// connectTo dials the named daemon's socket, mapping failures to the
// documented exit codes: 2 when nothing is installed under the name,
// 3 when something is installed but not answering.
func connectTo(cfg config.Config, daemonName string) (*client.Client, error) {
	if err := config.ValidateServiceName(daemonName); err != nil {
		return nil, err
	}

	c, err := client.Connect(cfg.SocketPath(daemonName))
	if err == nil {
		return c, nil
	}

	if _, statErr := os.Stat(cfg.ManifestPath(daemonName)); statErr != nil {
		return nil, cli.Exitf(cli.ExitNotFound, "daemon %q is not installed", daemonName)
	}
	return nil, cli.Exitf(cli.ExitNotRunning, "daemon %q is not running", daemonName)
}

// printJSON pretty-prints a raw result document.
func printJSON(raw json.RawMessage) error {
	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		// Not valid JSON; print as-is rather than hiding the payload.
		fmt.Println(string(raw))
		return nil
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
