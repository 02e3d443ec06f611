// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package envelope

import "errors"

var (
	// ErrMalformedEnvelope is returned when an envelope lacks its root,
	// header list or body section, or cannot be parsed at all.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrInvalidMarker is returned for CRLF marker tokens that could be
	// confused with XML escapes.
	ErrInvalidMarker = errors.New("invalid crlf marker")

	// ErrUnknownBodyEncoding is returned for body encodings other than
	// auto, text and base64.
	ErrUnknownBodyEncoding = errors.New("unknown body encoding")
)
