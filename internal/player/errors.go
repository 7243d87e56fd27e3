// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "errors"

var (
	// ErrNotInitialized is returned when LoadSource runs before Init.
	ErrNotInitialized = errors.New("player: not initialized")
	// ErrNotSupported means neither backend can play HLS here.
	ErrNotSupported = errors.New("player: HLS is not supported in this browser")
	// ErrNoSource is returned by a backend switch before any source was loaded.
	ErrNoSource = errors.New("player: no source loaded")
	// ErrSuperseded is returned by a pending load that a newer load or a
	// cleanup invalidated.
	ErrSuperseded = errors.New("player: load superseded")
	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("player: destroyed")
)
