// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package daemon

import (
	"log/slog"
	"net"

	"golang.org/x/sys/unix"
)

// logPeer records the connecting process's credentials at debug
// level. The protocol itself has no authentication (filesystem
// permissions on the socket are the isolation boundary), but knowing
// which pid/uid opened a connection makes local debugging of
// misbehaving clients much easier.
func logPeer(logger *slog.Logger, conn net.Conn) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return
	}

	var credentials *unix.Ucred
	var credErr error
	raw.Control(func(fd uintptr) {
		credentials, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if credErr != nil || credentials == nil {
		return
	}

	logger.Debug("connection accepted",
		"peer_pid", credentials.Pid,
		"peer_uid", credentials.Uid,
	)
}
