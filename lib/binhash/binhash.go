// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes content digests of daemon binaries. The
// digest is recorded in the daemon's metadata file at startup so that
// "fgp status" can tell whether the running process still matches the
// binary on disk after an upgrade.
package binhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// DigestSize is the size in bytes of a binary digest.
const DigestSize = 32

// HashFile computes the BLAKE3 digest of the file at path. The file
// is streamed through the hash in chunks (via io.Copy) to keep memory
// usage constant regardless of binary size.
func HashFile(path string) ([DigestSize]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [DigestSize]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [DigestSize]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest [DigestSize]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// SelfHash computes the digest of the currently running executable.
func SelfHash() ([DigestSize]byte, error) {
	executable, err := os.Executable()
	if err != nil {
		return [DigestSize]byte{}, fmt.Errorf("resolving executable path: %w", err)
	}
	return HashFile(executable)
}

// FormatDigest returns the hex-encoded string form of a digest. This
// is the canonical format used in metadata files and log output.
func FormatDigest(digest [DigestSize]byte) string {
	return hex.EncodeToString(digest[:])
}

// ParseDigest parses a hex-encoded digest string. Returns an error if
// the string is not a valid 64-character hex encoding of 32 bytes.
func ParseDigest(hexString string) ([DigestSize]byte, error) {
	var digest [DigestSize]byte
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != DigestSize {
		return digest, fmt.Errorf("digest is %d bytes, want %d", len(decoded), DigestSize)
	}
	copy(digest[:], decoded)
	return digest, nil
}
