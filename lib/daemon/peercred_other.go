// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package daemon

import (
	"log/slog"
	"net"
)

// logPeer is a no-op where SO_PEERCRED is unavailable.
func logPeer(logger *slog.Logger, conn net.Conn) {
	logger.Debug("connection accepted")
}
