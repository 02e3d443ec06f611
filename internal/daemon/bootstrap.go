// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/netguard/internal/api"
	"github.com/ManuGH/netguard/internal/config"
	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/guard"
	"github.com/ManuGH/netguard/internal/health"
	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/relay"
	"github.com/ManuGH/netguard/internal/telemetry"
)

// Options configures Build.
type Options struct {
	Mode    Mode
	Version string
	// Loader enables config reload; nil disables it.
	Loader *config.Loader
	// LogOutput overrides the log writer (stdout by default).
	LogOutput io.Writer
}

// Build wires the runtime for cfg. The returned App has not been started.
func Build(ctx context.Context, cfg config.AppConfig, opts Options) (*App, error) {
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Output:  opts.LogOutput,
		Service: cfg.Log.Service,
		Version: opts.Version,
	})
	logger := xglog.WithComponent("daemon")
	logger.Info().
		Str(xglog.FieldEvent, "daemon.build").
		Str("mode", string(opts.Mode)).
		Str("config", cfg.String()).
		Msg("building runtime")

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: opts.Version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("tracing disabled")
		provider = nil
	}

	store, err := guard.New(guard.Config{
		Root:         cfg.Guard.Root,
		PollInterval: cfg.Guard.PollInterval,
	}, xglog.WithComponent("guard"))
	if err != nil {
		return nil, fmt.Errorf("guard store: %w", err)
	}

	encoding, err := envelope.ParseBodyEncoding(cfg.Envelope.BodyEncoding)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	codec, err := envelope.NewCodec(envelope.WithBodyEncoding(encoding), envelope.WithMarker(cfg.Envelope.CRLFMarker))
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}

	hm := health.NewManager(opts.Version)
	hm.RegisterChecker(store.Checker())

	var (
		masterHandler http.Handler
		awaitStore    *guard.Store
		arrivals      *guard.ArrivalWatcher
		client        *http.Client
	)
	if opts.Mode.HasMaster() {
		masterHandler = relay.NewMaster(store, codec, relay.MasterConfig{
			AwaitTimeout: cfg.Master.AwaitTimeout,
			MaxBodyBytes: cfg.Master.MaxBodyBytes,
		}, xglog.WithComponent("master"))
		awaitStore = store
	}
	if opts.Mode.HasReplica() {
		client = relay.NewHTTPClient(cfg.Replica.Timeout)
		replica := relay.NewReplica(store, codec, client, cfg.Replica.URL, xglog.WithComponent("replica"))
		arrivals = guard.NewArrivalWatcher(store, replica.HandleRequestFile, guard.ArrivalOptions{
			Concurrency:  cfg.Replica.Concurrency,
			ScanInterval: cfg.Replica.ScanInterval,
		}, xglog.WithComponent("arrivals"))
	}

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.Log.Service
	}
	handler := api.NewRouter(api.RouterConfig{
		MasterPath:     cfg.Master.Path,
		RateLimit:      cfg.Master.RateLimit,
		TracingService: tracingService,
	}, masterHandler, hm)

	mgr, err := NewManager(ManagerConfig{ListenAddr: cfg.Master.ListenAddr}, handler, xglog.WithComponent("manager"))
	if err != nil {
		return nil, err
	}
	if provider != nil {
		mgr.RegisterShutdownHook("telemetry", provider.Shutdown)
	}
	if client != nil {
		mgr.RegisterShutdownHook("replica_client", func(context.Context) error {
			client.CloseIdleConnections()
			return nil
		})
	}

	var holder *config.ConfigHolder
	if opts.Loader != nil {
		holder = config.NewConfigHolder(cfg, opts.Loader)
	}
	return NewApp(logger, mgr, holder, awaitStore, arrivals), nil
}
