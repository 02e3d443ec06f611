// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/guard"
	"github.com/ManuGH/netguard/internal/relay"
)

// Environment variable names.
const (
	EnvGuardRoot          = "NETGUARD_GUARD_ROOT"
	EnvPollInterval       = "NETGUARD_POLL_INTERVAL"
	EnvListenAddr         = "NETGUARD_LISTEN"
	EnvMasterPath         = "NETGUARD_MASTER_PATH"
	EnvAwaitTimeout       = "NETGUARD_AWAIT_TIMEOUT"
	EnvRateLimit          = "NETGUARD_RATE_LIMIT"
	EnvMaxBodyBytes       = "NETGUARD_MAX_BODY_BYTES"
	EnvReplicaURL         = "NETGUARD_REPLICA_URL"
	EnvReplicaTimeout     = "NETGUARD_REPLICA_TIMEOUT"
	EnvReplicaConcurrency = "NETGUARD_REPLICA_CONCURRENCY"
	EnvScanInterval       = "NETGUARD_SCAN_INTERVAL"
	EnvBodyEncoding       = "NETGUARD_BODY_ENCODING"
	EnvCRLFMarker         = "NETGUARD_CRLF_MARKER"
	EnvLogLevel           = "NETGUARD_LOG_LEVEL"
	EnvLogService         = "NETGUARD_LOG_SERVICE"
	EnvOTelEnabled        = "NETGUARD_OTEL_ENABLED"
	EnvOTelExporter       = "NETGUARD_OTEL_EXPORTER"
	EnvOTelEndpoint       = "NETGUARD_OTEL_ENDPOINT"
	EnvOTelSamplingRate   = "NETGUARD_OTEL_SAMPLING_RATE"
)

// FileConfig is the YAML representation. Durations are Go duration
// strings; pointer fields distinguish "unset" from zero.
type FileConfig struct {
	Guard     GuardFileConfig     `yaml:"guard"`
	Master    MasterFileConfig    `yaml:"master"`
	Replica   ReplicaFileConfig   `yaml:"replica"`
	Envelope  EnvelopeFileConfig  `yaml:"envelope"`
	Log       LogFileConfig       `yaml:"log"`
	Telemetry TelemetryFileConfig `yaml:"telemetry"`
}

type GuardFileConfig struct {
	Root         string `yaml:"root"`
	PollInterval string `yaml:"pollInterval"`
}

type MasterFileConfig struct {
	ListenAddr   string `yaml:"listenAddr"`
	Path         string `yaml:"path"`
	AwaitTimeout string `yaml:"awaitTimeout"`
	RateLimit    *int   `yaml:"rateLimit"`
	MaxBodyBytes *int64 `yaml:"maxBodyBytes"`
}

type ReplicaFileConfig struct {
	URL          string `yaml:"url"`
	Timeout      string `yaml:"timeout"`
	Concurrency  *int   `yaml:"concurrency"`
	ScanInterval string `yaml:"scanInterval"`
}

type EnvelopeFileConfig struct {
	BodyEncoding string `yaml:"bodyEncoding"`
	CRLFMarker   string `yaml:"crlfMarker"`
}

type LogFileConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled"`
	Exporter     string   `yaml:"exporter"`
	Endpoint     string   `yaml:"endpoint"`
	SamplingRate *float64 `yaml:"samplingRate"`
}

// AppConfig is the resolved configuration.
type AppConfig struct {
	Version string

	Guard     GuardConfig
	Master    MasterConfig
	Replica   ReplicaConfig
	Envelope  EnvelopeConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type GuardConfig struct {
	Root         string
	PollInterval time.Duration
}

type MasterConfig struct {
	ListenAddr   string
	Path         string
	AwaitTimeout time.Duration
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit    int
	MaxBodyBytes int64
}

type ReplicaConfig struct {
	URL          string
	Timeout      time.Duration
	Concurrency  int
	ScanInterval time.Duration
}

type EnvelopeConfig struct {
	BodyEncoding string
	CRLFMarker   string
}

type LogConfig struct {
	Level   string
	Service string
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Guard: GuardConfig{
			Root:         guard.DefaultRoot,
			PollInterval: guard.DefaultPollInterval,
		},
		Master: MasterConfig{
			ListenAddr:   ":8080",
			Path:         "/apply.xqy",
			AwaitTimeout: relay.DefaultAwaitTimeout,
		},
		Replica: ReplicaConfig{
			URL:          relay.DefaultReplicaURL,
			Timeout:      relay.DefaultReplicaTimeout,
			Concurrency:  4,
			ScanInterval: time.Second,
		},
		Envelope: EnvelopeConfig{
			BodyEncoding: string(envelope.BodyAuto),
			CRLFMarker:   envelope.DefaultMarker,
		},
		Log: LogConfig{
			Level:   "info",
			Service: "netguard",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// String renders a one-line summary suitable for startup logs.
func (c AppConfig) String() string {
	return fmt.Sprintf("guard=%s poll=%s listen=%s path=%s await=%s replica=%s concurrency=%d encoding=%s",
		c.Guard.Root, c.Guard.PollInterval, c.Master.ListenAddr, c.Master.Path,
		c.Master.AwaitTimeout, c.Replica.URL, c.Replica.Concurrency, c.Envelope.BodyEncoding)
}
