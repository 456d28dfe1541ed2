// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/fgp-foundation/fgp/lib/protocol"
)

// ProbeHealth performs a minimal single-shot health call against a
// socket: dial, one request frame, one response frame. It exists so
// startup can test whether an existing socket has a live daemon
// behind it without pulling in the full client library. The returned
// bool is true when something answered with a well-formed ok
// response; a dial or read failure returns an error, which startup
// treats as "nothing alive there".
func ProbeHealth(ctx context.Context, socketPath string) (bool, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return false, fmt.Errorf("dialing %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	request := protocol.Request{ID: "startup-probe", V: protocol.Version, Method: "health"}
	frame, err := json.Marshal(request)
	if err != nil {
		return false, fmt.Errorf("marshaling probe: %w", err)
	}
	if _, err := conn.Write(append(frame, '\n')); err != nil {
		return false, fmt.Errorf("writing probe: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var response protocol.Response
	if err := decoder.Decode(&response); err != nil {
		return false, fmt.Errorf("reading probe response: %w", err)
	}
	return response.OK && response.ID == request.ID, nil
}
