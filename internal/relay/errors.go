// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"errors"
	"net/http"

	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/guard"
)

var (
	// ErrMissingCorrelationID is returned when the inbound Content-Type has
	// no usable replication boundary.
	ErrMissingCorrelationID = errors.New("missing correlation id")

	// ErrMalformedEnvelope is returned when an envelope cannot be decoded.
	ErrMalformedEnvelope = envelope.ErrMalformedEnvelope

	// ErrIO is returned for guard directory or file failures.
	ErrIO = guard.ErrIO

	// ErrTransport is returned when the replica endpoint cannot be reached
	// or the response wait expires.
	ErrTransport = guard.ErrTransport
)

// errorClass names the failure for metrics and logs.
func errorClass(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingCorrelationID):
		return "missing_correlation_id"
	case errors.Is(err, ErrMalformedEnvelope):
		return "malformed_envelope"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "internal"
	}
}

// httpStatus maps a relay failure to the status returned to the caller.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrMissingCorrelationID):
		return http.StatusBadRequest
	case errors.Is(err, ErrMalformedEnvelope):
		return http.StatusBadGateway
	case errors.Is(err, ErrTransport):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
