// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import "errors"

var (
	// ErrIO classifies directory and envelope file failures.
	ErrIO = errors.New("guard i/o failure")

	// ErrTransport is returned when a response wait ends before the
	// response envelope arrived (deadline or cancellation).
	ErrTransport = errors.New("transport failure")

	// ErrInvalidID is returned for correlation IDs that cannot be used as a
	// single file name.
	ErrInvalidID = errors.New("invalid correlation id")
)
