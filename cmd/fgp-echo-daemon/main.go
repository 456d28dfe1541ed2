// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// fgp-echo-daemon is the reference daemon for the FGP runtime. It
// exposes a handful of echo operations that exercise the protocol:
// parameter validation, slow handlers, and per-method call counters.
package main

import "github.com/fgp-foundation/fgp/lib/daemoncli"

func main() {
	daemoncli.Main(newRegistry())
}
