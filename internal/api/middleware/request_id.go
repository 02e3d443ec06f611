// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	xglog "github.com/ManuGH/netguard/internal/log"
)

// HeaderRequestID carries a caller-supplied request ID.
const HeaderRequestID = "X-Request-ID"

// RequestID attaches a request ID to the request context for logging. The
// ID is not echoed: relayed replies carry the replica's headers only.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		next.ServeHTTP(w, r.WithContext(xglog.ContextWithRequestID(r.Context(), reqID)))
	})
}
