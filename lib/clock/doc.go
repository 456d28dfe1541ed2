// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock time so uptime reporting and
// deadline behavior can be tested deterministically.
//
// Production code injects [Real]; tests inject [Fake] and advance it
// explicitly. The interface is deliberately small: the FGP runtime
// only reads the current time, measures elapsed durations, and waits
// for deadlines.
package clock
