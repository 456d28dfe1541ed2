// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for FGP
// binaries. The values are injected at build time via -ldflags.
package version
