// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// Exit codes shared by every FGP binary. Scripts branch on these, so
// they are part of the CLI's contract.
const (
	// ExitOK is success.
	ExitOK = 0
	// ExitFailure is a general failure with no more specific code.
	ExitFailure = 1
	// ExitNotFound means the named daemon or method does not exist.
	ExitNotFound = 2
	// ExitNotRunning means the daemon exists but is not running.
	ExitNotRunning = 3
	// ExitConnectFailed means the daemon appears to be running but the
	// socket could not be dialed or the connection broke mid-call.
	ExitConnectFailed = 4
)

// ExitError carries a specific exit code out of a command handler.
// If Message is set, main prints it to stderr; commands that already
// wrote their own output leave it empty.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the code to exit with.
func (e *ExitError) ExitCode() int { return e.Code }

// Exitf builds an ExitError with a formatted message.
func Exitf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ResolveExitCode maps a handler error to the process exit code. An
// error carrying an ExitCode method wins; anything else is a general
// failure.
func ResolveExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitFailure
}
