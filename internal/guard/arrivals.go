// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/metrics"
)

// ArrivalHandler processes one request envelope. Errors are logged by the
// watcher; the file is delivered again only if it changes afterwards.
type ArrivalHandler func(ctx context.Context, path string) error

// ArrivalOptions tunes an ArrivalWatcher.
type ArrivalOptions struct {
	// Concurrency bounds the number of handlers running at once.
	Concurrency int
	// ScanInterval is how often the directory is rescanned in case a
	// notification was missed or is unavailable.
	ScanInterval time.Duration
	// SettleTime is how long a file must keep its size and modification
	// time before it is delivered. Zero means DefaultSettleTime, or
	// ScanInterval when that is shorter.
	SettleTime time.Duration
}

// DefaultSettleTime is the default ArrivalOptions.SettleTime.
const DefaultSettleTime = 250 * time.Millisecond

// observation is what a request file looked like when last examined.
type observation struct {
	size    int64
	modTime time.Time
	since   time.Time
}

func observe(info os.FileInfo, now time.Time) observation {
	return observation{size: info.Size(), modTime: info.ModTime(), since: now}
}

func (o observation) same(info os.FileInfo) bool {
	return o.size == info.Size() && o.modTime.Equal(info.ModTime())
}

// claim records a delivered file and whether its handler failed.
type claim struct {
	seen   observation
	failed bool
}

// ArrivalWatcher delivers each request envelope that appears in the
// from-master directory to a handler, once per process. A file is delivered
// only after it has stopped changing, so envelopes written in place by a
// non-atomic writer are not read half-written. Requests whose response
// envelope already exists are skipped, so a restart does not replay
// finished cycles.
type ArrivalWatcher struct {
	store   *Store
	handle  ArrivalHandler
	opts    ArrivalOptions
	logger  zerolog.Logger
	mu      sync.Mutex
	pending map[string]observation
	claimed map[string]claim
}

// NewArrivalWatcher creates a watcher over store's from-master directory.
func NewArrivalWatcher(store *Store, handle ArrivalHandler, opts ArrivalOptions, logger zerolog.Logger) *ArrivalWatcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = store.PollInterval()
	}
	if opts.SettleTime <= 0 {
		opts.SettleTime = min(DefaultSettleTime, opts.ScanInterval)
	}
	return &ArrivalWatcher{
		store:   store,
		handle:  handle,
		opts:    opts,
		logger:  logger,
		pending: make(map[string]observation),
		claimed: make(map[string]claim),
	}
}

// Run blocks until ctx is done, then waits for in-flight handlers.
func (w *ArrivalWatcher) Run(ctx context.Context) error {
	var pool errgroup.Group
	pool.SetLimit(w.opts.Concurrency)
	defer func() {
		_ = pool.Wait()
	}()

	var events <-chan fsnotify.Event
	var errs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(w.store.FromMasterDir())
	}
	if err != nil {
		w.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "arrivals.watch_unavailable").
			Dur("scan_interval", w.opts.ScanInterval).
			Msg("cannot watch request directory, relying on periodic scans")
	} else {
		events, errs = watcher.Events, watcher.Errors
	}
	if watcher != nil {
		defer func() {
			_ = watcher.Close()
		}()
	}

	w.logger.Info().
		Str(xglog.FieldEvent, "arrivals.started").
		Str(xglog.FieldPath, w.store.FromMasterDir()).
		Int("concurrency", w.opts.Concurrency).
		Msg("watching for request envelopes")

	w.scan(ctx, &pool)

	ticker := time.NewTicker(w.opts.ScanInterval)
	defer ticker.Stop()
	settle := time.NewTicker(max(w.opts.SettleTime/2, time.Millisecond))
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.dispatch(ctx, &pool, event.Name)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn().Err(err).Str(xglog.FieldEvent, "arrivals.watch_error").Msg("fsnotify watcher error")
		case <-ticker.C:
			w.scan(ctx, &pool)
		case <-settle.C:
			w.confirm(ctx, &pool)
		}
	}
}

// scan examines every envelope in the directory and forgets state for
// files that were removed, so neither map outgrows the directory.
func (w *ArrivalWatcher) scan(ctx context.Context, pool *errgroup.Group) {
	entries, err := os.ReadDir(w.store.FromMasterDir())
	if err != nil {
		w.logger.Error().Err(err).Str(xglog.FieldEvent, "arrivals.scan_failed").Msg("cannot list request directory")
		return
	}

	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.store.FromMasterDir(), entry.Name())
		present[path] = struct{}{}
		w.dispatch(ctx, pool, path)
	}

	w.mu.Lock()
	for path := range w.claimed {
		if _, ok := present[path]; !ok {
			delete(w.claimed, path)
		}
	}
	for path := range w.pending {
		if _, ok := present[path]; !ok {
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()
}

// confirm re-examines the files still waiting to settle.
func (w *ArrivalWatcher) confirm(ctx context.Context, pool *errgroup.Group) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		w.dispatch(ctx, pool, path)
	}
}

// dispatch hands path to the handler once it has been seen unchanged for
// the settle time. Events and scans both land here; each call either
// records a new observation or confirms the previous one.
func (w *ArrivalWatcher) dispatch(ctx context.Context, pool *errgroup.Group, path string) {
	if ctx.Err() != nil || !isEnvelopeName(filepath.Base(path)) {
		return
	}
	id, err := IDFromRequestPath(path)
	if err != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	logger := w.logger.With().Str(xglog.FieldCorrelationID, id).Logger()

	now := time.Now()
	w.mu.Lock()
	if c, done := w.claimed[path]; done {
		if !c.failed || c.seen.same(info) {
			w.mu.Unlock()
			return
		}
		// The handler failed and the file has changed since: it was still
		// being written. Start over once it settles.
		delete(w.claimed, path)
		logger.Info().
			Str(xglog.FieldEvent, "arrivals.redeliver").
			Str(xglog.FieldPath, path).
			Msg("request envelope changed after a failed delivery")
	}
	prev, ok := w.pending[path]
	if !ok || !prev.same(info) {
		w.pending[path] = observe(info, now)
		w.mu.Unlock()
		return
	}
	if info.Size() == 0 || now.Sub(prev.since) < w.opts.SettleTime {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.claimed[path] = claim{seen: prev}
	w.mu.Unlock()

	if answered, _ := exists(w.store.ResponsePath(id)); answered {
		metrics.ArrivalsSkipped.Inc()
		logger.Debug().
			Str(xglog.FieldEvent, "arrivals.already_answered").
			Str(xglog.FieldPath, path).
			Msg("response exists, skipping request")
		return
	}

	pool.Go(func() error {
		hctx := xglog.ContextWithCorrelationID(ctx, id)
		if err := w.handle(hctx, path); err != nil {
			w.markFailed(path)
			logger.Error().Err(err).
				Str(xglog.FieldEvent, "arrivals.handler_failed").
				Str(xglog.FieldPath, path).
				Msg("request envelope handling failed")
		}
		return nil
	})
}

func (w *ArrivalWatcher) markFailed(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.claimed[path]; ok {
		c.failed = true
		w.claimed[path] = c
	}
}
