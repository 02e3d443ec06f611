// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPURLKey        = "http.url"

	RelayFaceKey          = "relay.face"
	RelayCorrelationIDKey = "relay.correlation_id"
	RelayRequestIDKey     = "relay.request_id"

	EnvelopeDirectionKey = "envelope.direction"
	EnvelopeBytesKey     = "envelope.bytes"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RelayAttributes identifies one relay cycle.
func RelayAttributes(face, correlationID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(RelayFaceKey, face)}
	if correlationID != "" {
		attrs = append(attrs, attribute.String(RelayCorrelationIDKey, correlationID))
	}
	return attrs
}

// RequestIDAttribute links a relay span to the inbound HTTP request ID.
func RequestIDAttribute(id string) attribute.KeyValue {
	return attribute.String(RelayRequestIDKey, id)
}

// EnvelopeAttributes describes an envelope written to the guard.
func EnvelopeAttributes(direction string, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EnvelopeDirectionKey, direction),
		attribute.Int(EnvelopeBytesKey, size),
	}
}

// HTTPAttributes describes the outbound replica call.
func HTTPAttributes(method, url string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPURLKey, url),
	}
	if statusCode != 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, statusCode))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with the given class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
