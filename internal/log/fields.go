// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldService       = "service"
	FieldVersion       = "version"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldFace      = "face"

	// Path / URL fields
	FieldPath      = "path"
	FieldDirection = "direction"
	FieldURL       = "url"

	// HTTP fields
	FieldMethod     = "method"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldBytes      = "bytes"
)
