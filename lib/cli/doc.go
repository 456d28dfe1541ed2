// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework shared by the FGP binaries.
//
// A [Command] tree dispatches on positional arguments, parses flags
// with pflag, and prints structured help. Command handlers report
// failures as ordinary errors; failures that map to a documented exit
// code return an [*ExitError] instead, and the binary's main function
// translates it via [ResolveExitCode].
package cli
