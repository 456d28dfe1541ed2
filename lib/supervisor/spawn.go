// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDetached launches binary with args in its own session so it
// survives the parent exiting. Stdout and stderr are appended to
// logPath. Returns the child pid.
func StartDetached(binary string, args []string, env []string, logPath string) (int, error) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return 0, fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.Command(binary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", binary, err)
	}
	pid := cmd.Process.Pid

	// The child belongs to its own session; nothing will wait on it
	// from here.
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("releasing process handle: %w", err)
	}
	return pid, nil
}
