// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/ManuGH/netguard/internal/daemon"
	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/version"
)

// daemonCmd runs one or both relay faces until the context is cancelled.
type daemonCmd struct {
	streams
	mode       daemon.Mode
	configPath string
}

func (c *daemonCmd) Name() string { return string(c.mode) }

func (c *daemonCmd) Synopsis() string {
	switch c.mode {
	case daemon.ModeMaster:
		return "serve the master face and await response envelopes"
	case daemon.ModeReplica:
		return "forward request envelopes to the replica"
	default:
		return "run both relay faces in one process"
	}
}

func (c *daemonCmd) Usage() string {
	return fmt.Sprintf("%s [--config path.yaml]:\n  %s.\n", c.mode, c.Synopsis())
}

func (c *daemonCmd) SetFlags(f *flag.FlagSet) {
	f.SetOutput(c.stderr)
	f.StringVar(&c.configPath, "config", "", "path to config file (YAML)")
}

func (c *daemonCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	// Safe defaults until the configuration has been loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "netguard", Version: version.Version})
	logger := xglog.WithComponent("main")

	loader, cfg, err := loadConfig(c.configPath)
	if err != nil {
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", c.configPath).
			Msg("failed to load configuration")
		return subcommands.ExitFailure
	}

	app, err := daemon.Build(ctx, cfg, daemon.Options{Mode: c.mode, Version: version.Version, Loader: loader})
	if err != nil {
		logger = xglog.WithComponent("main")
		logger.Error().Err(err).Str(xglog.FieldEvent, "startup.failed").Msg("failed to build runtime")
		return subcommands.ExitFailure
	}

	logger = xglog.WithComponent("main")
	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("mode", string(c.mode)).
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Msg("starting netguard")

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("netguard stopped with error")
		return subcommands.ExitFailure
	}
	logger.Info().Str(xglog.FieldEvent, "shutdown").Msg("netguard stopped")
	return subcommands.ExitSuccess
}
