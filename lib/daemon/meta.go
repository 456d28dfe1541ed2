// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fgp-foundation/fgp/lib/binhash"
)

// Metadata is the runtime record a daemon writes beside its socket.
// Supervisors read it to answer "is the installed daemon the one
// actually running", without opening a protocol connection.
type Metadata struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`

	// BinaryDigest is the BLAKE3 digest of the daemon executable at
	// startup, hex encoded. Empty when the executable could not be
	// hashed.
	BinaryDigest string `json:"binary_digest,omitempty"`
}

// MetadataPath returns where the metadata file lives for a given
// socket path.
func MetadataPath(socketPath string) string {
	return socketPath + ".pid"
}

// WriteMetadata records the current process's runtime metadata.
func WriteMetadata(path, version string, startedAt time.Time) error {
	metadata := Metadata{
		PID:       os.Getpid(),
		StartedAt: startedAt,
		Version:   version,
	}
	if digest, err := binhash.SelfHash(); err == nil {
		metadata.BinaryDigest = binhash.FormatDigest(digest)
	}

	encoded, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	encoded = append(encoded, '\n')

	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("writing metadata file: %w", err)
	}
	return nil
}

// ReadMetadata loads a daemon's metadata file.
func ReadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file %s: %w", path, err)
	}
	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("parsing metadata file %s: %w", path, err)
	}
	return &metadata, nil
}

// ProcessAlive reports whether the given pid names a running process
// this user can see. Signal 0 probes existence without delivering
// anything; EPERM still means the process exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
