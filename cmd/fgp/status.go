// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/fgp-foundation/fgp/lib/cli"
	"github.com/fgp-foundation/fgp/lib/supervisor"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Usage:   "fgp status [name]",
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("status takes at most one daemon name")
			}
			s, err := newSupervisor()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if len(args) == 1 {
				status, err := s.Status(ctx, args[0])
				if err != nil {
					return classify(err)
				}
				if !status.Installed {
					return cli.Exitf(cli.ExitNotFound, "daemon %q is not installed", args[0])
				}
				renderStatuses(os.Stdout, []*supervisor.Status{status})
				if !status.Running {
					return &cli.ExitError{Code: cli.ExitNotRunning}
				}
				return nil
			}

			statuses, err := s.StatusAll(ctx)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("no daemons installed")
				return nil
			}
			renderStatuses(os.Stdout, statuses)
			return nil
		},
	}
}

// renderStatuses prints one row per daemon: styled when stdout is a
// terminal, plain tab-separated otherwise.
func renderStatuses(w io.Writer, statuses []*supervisor.Status) {
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		renderStyled(w, statuses)
		return
	}

	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tPID\tVERSION\tUPTIME\tDESCRIPTION")
	for _, status := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			status.Name, stateWord(status), pidColumn(status),
			status.Version, uptimeColumn(status), status.Description)
	}
	tw.Flush()
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	downStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

func renderStyled(w io.Writer, statuses []*supervisor.Status) {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, headerStyle.Render("NAME")+"\t"+headerStyle.Render("STATE")+"\t"+
		headerStyle.Render("PID")+"\t"+headerStyle.Render("VERSION")+"\t"+
		headerStyle.Render("UPTIME")+"\t"+headerStyle.Render("DESCRIPTION"))
	for _, status := range statuses {
		state := stateWord(status)
		switch {
		case status.Healthy:
			state = runningStyle.Render(state)
		case status.Running:
			state = faintStyle.Render(state)
		default:
			state = downStyle.Render(state)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			status.Name, state, pidColumn(status),
			status.Version, uptimeColumn(status), faintStyle.Render(status.Description))
	}
	tw.Flush()
}

func stateWord(status *supervisor.Status) string {
	switch {
	case status.Healthy:
		return "healthy"
	case status.Degraded:
		return "degraded"
	case status.Running:
		return "running"
	default:
		return "stopped"
	}
}

func pidColumn(status *supervisor.Status) string {
	if status.PID <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", status.PID)
}

func uptimeColumn(status *supervisor.Status) string {
	if !status.Running || status.UptimeSecs <= 0 {
		return "-"
	}
	return (time.Duration(status.UptimeSecs) * time.Second).String()
}
