// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnvelopesWritten counts envelope files committed to the guard
	// directories, by direction ("from-master", "from-replica").
	EnvelopesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_envelopes_written_total",
		Help: "Envelope files committed to the guard directories",
	}, []string{"direction"})

	// RelayCycles counts finished relay cycles by face and result.
	RelayCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_relay_cycles_total",
		Help: "Relay cycles by face (master, replica) and result",
	}, []string{"face", "result"})

	// AwaitDuration tracks how long the master face waited for a response
	// envelope to appear.
	AwaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netguard_await_duration_seconds",
		Help:    "Time from response wait start to response envelope arrival",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300},
	})

	// UpstreamDuration tracks the replica-side HTTP call to the real
	// replica endpoint.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netguard_replica_upstream_duration_seconds",
		Help:    "Duration of the replica endpoint call by status class",
		Buckets: prometheus.DefBuckets,
	}, []string{"status_class"})

	// ArrivalsSkipped counts request files the arrival watcher ignored
	// because a response already existed.
	ArrivalsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netguard_arrivals_skipped_total",
		Help: "Request envelopes skipped because a response already exists",
	})
)

// IncEnvelopeWritten records one committed envelope.
func IncEnvelopeWritten(direction string) {
	EnvelopesWritten.WithLabelValues(direction).Inc()
}

// IncRelayCycle records a relay cycle outcome. result is "success" or an
// error class such as "malformed_envelope".
func IncRelayCycle(face, result string) {
	RelayCycles.WithLabelValues(face, result).Inc()
}

// ObserveAwait records the response wait duration.
func ObserveAwait(d time.Duration) {
	AwaitDuration.Observe(d.Seconds())
}

// ObserveUpstream records an upstream call. status 0 means the call failed
// before a response arrived.
func ObserveUpstream(status int, d time.Duration) {
	UpstreamDuration.WithLabelValues(statusClass(status)).Observe(d.Seconds())
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
