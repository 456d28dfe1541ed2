// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemoncli gives every daemon binary the same command
// surface: run (serve in the foreground), start (spawn detached, or
// --foreground), stop, and status. A daemon main is one line:
//
//	func main() { daemoncli.Main(buildRegistry()) }
//
// Socket placement follows the runtime convention
// <home>/services/<name>/daemon.sock unless --socket overrides it.
package daemoncli
