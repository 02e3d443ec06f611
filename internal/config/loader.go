// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves an AppConfig from defaults, an optional YAML file and
// the environment.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader returns a loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, or "".
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load applies defaults, then the file, then the environment, and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile parses path strictly: unknown fields and trailing documents are
// errors. An empty file is an empty config.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingContent
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	var errs []error
	duration := func(field, value string, target *time.Duration) {
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*target = d
	}
	str := func(value string, target *string) {
		if value != "" {
			*target = value
		}
	}

	str(src.Guard.Root, &dst.Guard.Root)
	duration("guard.pollInterval", src.Guard.PollInterval, &dst.Guard.PollInterval)

	str(src.Master.ListenAddr, &dst.Master.ListenAddr)
	str(src.Master.Path, &dst.Master.Path)
	duration("master.awaitTimeout", src.Master.AwaitTimeout, &dst.Master.AwaitTimeout)
	if src.Master.RateLimit != nil {
		dst.Master.RateLimit = *src.Master.RateLimit
	}
	if src.Master.MaxBodyBytes != nil {
		dst.Master.MaxBodyBytes = *src.Master.MaxBodyBytes
	}

	str(src.Replica.URL, &dst.Replica.URL)
	duration("replica.timeout", src.Replica.Timeout, &dst.Replica.Timeout)
	if src.Replica.Concurrency != nil {
		dst.Replica.Concurrency = *src.Replica.Concurrency
	}
	duration("replica.scanInterval", src.Replica.ScanInterval, &dst.Replica.ScanInterval)

	str(src.Envelope.BodyEncoding, &dst.Envelope.BodyEncoding)
	str(src.Envelope.CRLFMarker, &dst.Envelope.CRLFMarker)

	str(src.Log.Level, &dst.Log.Level)
	str(src.Log.Service, &dst.Log.Service)

	if src.Telemetry.Enabled != nil {
		dst.Telemetry.Enabled = *src.Telemetry.Enabled
	}
	str(src.Telemetry.Exporter, &dst.Telemetry.Exporter)
	str(src.Telemetry.Endpoint, &dst.Telemetry.Endpoint)
	if src.Telemetry.SamplingRate != nil {
		dst.Telemetry.SamplingRate = *src.Telemetry.SamplingRate
	}

	return errors.Join(errs...)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Guard.Root = l.envString(EnvGuardRoot, cfg.Guard.Root)
	cfg.Guard.PollInterval = l.envDuration(EnvPollInterval, cfg.Guard.PollInterval)

	cfg.Master.ListenAddr = l.envString(EnvListenAddr, cfg.Master.ListenAddr)
	cfg.Master.Path = l.envString(EnvMasterPath, cfg.Master.Path)
	cfg.Master.AwaitTimeout = l.envDuration(EnvAwaitTimeout, cfg.Master.AwaitTimeout)
	cfg.Master.RateLimit = l.envInt(EnvRateLimit, cfg.Master.RateLimit)
	cfg.Master.MaxBodyBytes = l.envInt64(EnvMaxBodyBytes, cfg.Master.MaxBodyBytes)

	cfg.Replica.URL = l.envString(EnvReplicaURL, cfg.Replica.URL)
	cfg.Replica.Timeout = l.envDuration(EnvReplicaTimeout, cfg.Replica.Timeout)
	cfg.Replica.Concurrency = l.envInt(EnvReplicaConcurrency, cfg.Replica.Concurrency)
	cfg.Replica.ScanInterval = l.envDuration(EnvScanInterval, cfg.Replica.ScanInterval)

	cfg.Envelope.BodyEncoding = l.envString(EnvBodyEncoding, cfg.Envelope.BodyEncoding)
	cfg.Envelope.CRLFMarker = l.envString(EnvCRLFMarker, cfg.Envelope.CRLFMarker)

	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Service = l.envString(EnvLogService, cfg.Log.Service)

	cfg.Telemetry.Enabled = l.envBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTelExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvOTelSamplingRate, cfg.Telemetry.SamplingRate)
}
