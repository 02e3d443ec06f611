// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestRelayAttributes(t *testing.T) {
	attrs := RelayAttributes("master", "abc123")
	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, RelayFaceKey, "master")
	verifyAttribute(t, attrs, RelayCorrelationIDKey, "abc123")

	if got := RelayAttributes("replica", ""); len(got) != 1 {
		t.Errorf("Expected correlation id to be omitted when empty, got %d attributes", len(got))
	}
}

func TestRequestIDAttribute(t *testing.T) {
	verifyAttribute(t, []attribute.KeyValue{RequestIDAttribute("rid-1")}, RelayRequestIDKey, "rid-1")
}

func TestEnvelopeAttributes(t *testing.T) {
	attrs := EnvelopeAttributes("from-master", 512)
	verifyAttribute(t, attrs, EnvelopeDirectionKey, "from-master")
	verifyIntAttribute(t, attrs, EnvelopeBytesKey, 512)
}

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("POST", "http://replica:8000/apply.xqy", 200)
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, HTTPMethodKey, "POST")
	verifyAttribute(t, attrs, HTTPURLKey, "http://replica:8000/apply.xqy")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)

	if got := HTTPAttributes("POST", "http://replica", 0); len(got) != 2 {
		t.Errorf("Expected status to be omitted before a reply, got %d attributes", len(got))
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("transport")
	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "transport")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
