// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api assembles the master face's HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/netguard/internal/api/middleware"
	"github.com/ManuGH/netguard/internal/health"
)

// DefaultMasterPath is the route replication traffic is posted to.
const DefaultMasterPath = "/apply.xqy"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	MasterPath string
	// RateLimit is requests per minute per client IP on the relay route.
	RateLimit int
	// TracingService names server spans; empty disables tracing.
	TracingService string
}

// NewRouter mounts master on cfg.MasterPath for any method, plus the probe
// and metrics endpoints. master may be nil for a replica-only process.
func NewRouter(cfg RouterConfig, master http.Handler, hm *health.Manager) http.Handler {
	if cfg.MasterPath == "" {
		cfg.MasterPath = DefaultMasterPath
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if master != nil {
		relay := master
		if cfg.RateLimit > 0 {
			relay = middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: cfg.RateLimit,
				WindowSize:   time.Minute,
			})(master)
		}
		r.Handle(cfg.MasterPath, relay)
	}
	return r
}

// NewServer returns an HTTP server for handler. Writes may take as long as
// a full relay cycle, so only header reads and idle connections are bounded.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
