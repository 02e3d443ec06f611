// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { Configure(Config{}) })

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/apply.xqy", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "rid-7"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var found map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			continue
		}
		if entry[FieldEvent] == "request.handled" {
			found = entry
		}
	}
	require.NotNil(t, found, "expected request.handled log entry")
	assert.Equal(t, "test", found[FieldService])
	assert.Equal(t, "rid-7", found[FieldRequestID])
	assert.Equal(t, "/apply.xqy", found[FieldPath])
	assert.EqualValues(t, http.StatusTeapot, found[FieldStatus])
	assert.EqualValues(t, len("short and stout"), found[FieldBytes])
}
