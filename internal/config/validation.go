// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/validate"
)

// Validate checks a resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.DirectoryPath("guard.root", cfg.Guard.Root)
	v.PositiveDuration("guard.pollInterval", cfg.Guard.PollInterval)

	v.ListenAddr("master.listenAddr", cfg.Master.ListenAddr)
	v.HTTPPath("master.path", cfg.Master.Path)
	v.PositiveDuration("master.awaitTimeout", cfg.Master.AwaitTimeout)
	v.NonNegative("master.rateLimit", cfg.Master.RateLimit)
	if cfg.Master.MaxBodyBytes < 0 {
		v.AddError("master.maxBodyBytes", "value cannot be negative", cfg.Master.MaxBodyBytes)
	}

	v.URL("replica.url", cfg.Replica.URL, []string{"http", "https"})
	v.PositiveDuration("replica.timeout", cfg.Replica.Timeout)
	v.Range("replica.concurrency", cfg.Replica.Concurrency, 1, 256)
	v.PositiveDuration("replica.scanInterval", cfg.Replica.ScanInterval)

	v.Custom("envelope.bodyEncoding", cfg.Envelope.BodyEncoding, func(any) error {
		_, err := envelope.ParseBodyEncoding(cfg.Envelope.BodyEncoding)
		return err
	})
	v.Custom("envelope.crlfMarker", cfg.Envelope.CRLFMarker, func(any) error {
		return envelope.ValidateMarker(cfg.Envelope.CRLFMarker)
	})

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}
	v.NotEmpty("log.service", cfg.Log.Service)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
