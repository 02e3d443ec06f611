// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/ManuGH/netguard/internal/guard"
	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/version"
)

// sweepCmd deletes envelopes the relay has finished with.
type sweepCmd struct {
	streams
	configPath string
	olderThan  time.Duration
}

func (*sweepCmd) Name() string     { return "sweep" }
func (*sweepCmd) Synopsis() string { return "delete envelope files older than --older-than" }
func (*sweepCmd) Usage() string {
	return `sweep [--config path.yaml] [--older-than 24h]:
  Remove request and response envelopes last modified before the given age.
`
}

func (c *sweepCmd) SetFlags(f *flag.FlagSet) {
	f.SetOutput(c.stderr)
	f.StringVar(&c.configPath, "config", "", "path to config file (YAML)")
	f.DurationVar(&c.olderThan, "older-than", 24*time.Hour, "delete envelopes last modified before this age")
}

func (c *sweepCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.olderThan <= 0 {
		_, _ = fmt.Fprintln(c.stderr, "netguard: --older-than must be positive")
		return subcommands.ExitUsageError
	}

	_, cfg, err := loadConfig(c.configPath)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "netguard: load config: %v\n", err)
		return subcommands.ExitFailure
	}
	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Output: c.stderr, Service: cfg.Log.Service, Version: version.Version})

	store, err := guard.New(guard.Config{Root: cfg.Guard.Root, PollInterval: cfg.Guard.PollInterval}, xglog.WithComponent("guard"))
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "netguard: %v\n", err)
		return subcommands.ExitFailure
	}
	n, err := store.Sweep(ctx, c.olderThan, time.Now())
	_, _ = fmt.Fprintf(c.stdout, "removed %d envelope(s)\n", n)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "netguard: sweep: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
