// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memstore provides in-memory implementations of the auth
// repositories and the login attempt tracker.
//
// State lives in a single process, so these are meant for development mode
// and tests. Every operation holds the store mutex for its whole duration,
// which gives the same atomicity guarantees the postgres repositories get
// from transactions.
package memstore
