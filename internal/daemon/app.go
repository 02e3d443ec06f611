// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/netguard/internal/config"
	"github.com/ManuGH/netguard/internal/guard"
	xglog "github.com/ManuGH/netguard/internal/log"
)

// Mode selects which relay faces a process runs.
type Mode string

const (
	ModeMaster  Mode = "master"
	ModeReplica Mode = "replica"
	ModeAll     Mode = "all"
)

// ParseMode parses a command name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeMaster, ModeReplica, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// HasMaster reports whether the mode serves the master face.
func (m Mode) HasMaster() bool { return m == ModeMaster || m == ModeAll }

// HasReplica reports whether the mode runs the replica face.
func (m Mode) HasReplica() bool { return m == ModeReplica || m == ModeAll }

// App owns the long-lived runtime lifecycle (watchers, reload wiring) and
// delegates server management to Manager.
type App struct {
	logger    zerolog.Logger
	manager   Manager
	cfgHolder *config.ConfigHolder
	store     *guard.Store
	arrivals  *guard.ArrivalWatcher

	reloadSignal os.Signal
}

// NewApp creates an App. store is set for processes that await responses;
// arrivals is set for processes that run the replica face.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, store *guard.Store, arrivals *guard.ArrivalWatcher) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		store:        store,
		arrivals:     arrivals,
		reloadSignal: syscall.SIGHUP,
	}
}

// Manager returns the server manager.
func (a *App) Manager() Manager { return a.manager }

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		g.Go(func() error {
			// Best-effort: a broken watcher must not take the relay down.
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("config watcher stopped")
			}
			return nil
		})

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			current := a.cfgHolder.Get().Log.Level
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					if cfg.Log.Level == current {
						continue
					}
					current = cfg.Log.Level
					xglog.Configure(xglog.Config{
						Level:   cfg.Log.Level,
						Service: cfg.Log.Service,
						Version: cfg.Version,
					})
					a.logger.Info().
						Str(xglog.FieldEvent, "log.level_applied").
						Str("level", cfg.Log.Level).
						Msg("log level updated")
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.store != nil {
		g.Go(func() error { return a.store.Run(ctx) })
	}
	if a.arrivals != nil {
		g.Go(func() error { return a.arrivals.Run(ctx) })
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}
