// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid http", "http://localhost:8000/apply.xqy", false},
		{"valid https", "https://replica.example.com/apply.xqy", false},
		{"empty url", "", true},
		{"no host", "http://", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no scheme", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("replica.url", tt.value, []string{"http", "https"})

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{":8080", false},
		{"127.0.0.1:0", false},
		{"[::1]:9000", false},
		{"8080", true},
		{":http-alt", true},
		{":70000", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v := New()
			v.ListenAddr("master.listenAddr", tt.value)
			if tt.wantErr == v.IsValid() {
				t.Errorf("ListenAddr(%q) valid=%v, wantErr=%v", tt.value, v.IsValid(), tt.wantErr)
			}
		})
	}
}

func TestValidator_DirectoryPath(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"network-guard", false},
		{"/var/lib/netguard", false},
		{"data/..guard", false},
		{"", true},
		{"../escape", true},
		{"a/../../b", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v := New()
			v.DirectoryPath("guard.root", tt.value)
			if tt.wantErr == v.IsValid() {
				t.Errorf("DirectoryPath(%q) valid=%v, wantErr=%v", tt.value, v.IsValid(), tt.wantErr)
			}
		})
	}
}

func TestValidator_Checks(t *testing.T) {
	v := New()
	v.HTTPPath("master.path", "apply.xqy")
	v.Range("replica.concurrency", 0, 1, 256)
	v.FloatRange("telemetry.samplingRate", 1.5, 0, 1)
	v.PositiveDuration("guard.pollInterval", 0)
	v.NonNegative("master.rateLimit", -1)
	v.NotEmpty("envelope.crlfMarker", "  ")
	v.OneOf("envelope.bodyEncoding", "hex", []string{"auto", "text", "base64"})
	v.Custom("custom", "x", func(any) error { return errors.New("nope") })

	if got := len(v.Errors()); got != 8 {
		t.Fatalf("expected 8 errors, got %d: %v", got, v.Err())
	}

	v2 := New()
	v2.HTTPPath("master.path", "/apply.xqy")
	v2.Range("replica.concurrency", 4, 1, 256)
	v2.FloatRange("telemetry.samplingRate", 0.5, 0, 1)
	v2.PositiveDuration("guard.pollInterval", time.Second)
	v2.NonNegative("master.rateLimit", 0)
	v2.NotEmpty("envelope.crlfMarker", "CARRIAGERETURN")
	v2.OneOf("envelope.bodyEncoding", "auto", []string{"auto", "text", "base64"})
	if err := v2.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidationError_JoinsMessages(t *testing.T) {
	v := New()
	v.NotEmpty("a", "")
	v.NotEmpty("b", "")

	err := v.Err()
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(verr.Errors()))
	}
	if !strings.Contains(err.Error(), "validation failed for a") || !strings.Contains(err.Error(), "; validation failed for b") {
		t.Errorf("unexpected message %q", err.Error())
	}

	// Later additions do not mutate an error already returned.
	v.NotEmpty("c", "")
	if len(verr.Errors()) != 2 {
		t.Errorf("ValidationError changed after Err returned")
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, in := range []string{"trace", "DEBUG", " info ", "warn", "error"} {
		if _, err := ParseLogLevel(in); err != nil {
			t.Errorf("ParseLogLevel(%q) = %v", in, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
