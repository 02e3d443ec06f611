// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/metrics"
)

// waiters maps a response file name to the channels of everyone waiting
// for it. Channels have a buffer of one and sends never block.
type waiters struct {
	mu     sync.Mutex
	byName map[string]map[chan struct{}]struct{}
}

func newWaiters() *waiters {
	return &waiters{byName: make(map[string]map[chan struct{}]struct{})}
}

func (w *waiters) subscribe(name string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	w.mu.Lock()
	set, ok := w.byName[name]
	if !ok {
		set = make(map[chan struct{}]struct{})
		w.byName[name] = set
	}
	set[ch] = struct{}{}
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if set, ok := w.byName[name]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(w.byName, name)
			}
		}
	}
}

func (w *waiters) notify(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.byName[name] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// AwaitResponseEnvelope blocks until <from-replica>/response-<id>.xml exists
// and returns its path. Wake-ups come from in-process writers, from the
// directory watch started by Run, and from a poll ticker as the fallback.
// The wait ends with an error wrapping ErrTransport when ctx is done.
func (s *Store) AwaitResponseEnvelope(ctx context.Context, id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	path := s.ResponsePath(id)
	name := filepath.Base(path)
	logger := xglog.WithContext(ctx, s.logger)

	// Subscribe before the first check so a write in between is not lost.
	wake, unsubscribe := s.waiters.subscribe(name)
	defer unsubscribe()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	start := time.Now()
	for {
		ok, err := exists(path)
		if err != nil {
			return "", fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
		}
		if ok {
			waited := time.Since(start)
			metrics.ObserveAwait(waited)
			logger.Debug().
				Str(xglog.FieldEvent, "guard.await_resolved").
				Str(xglog.FieldPath, path).
				Dur("waited", waited).
				Msg("response envelope arrived")
			return path, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: waiting for %s: %w", ErrTransport, name, ctx.Err())
		case <-wake:
		case <-ticker.C:
			logger.Debug().
				Str(xglog.FieldEvent, "guard.await_poll").
				Str(xglog.FieldPath, path).
				Msg("waiting for response envelope")
		}
	}
}

// Run watches the from-replica directory and wakes waiters when a response
// envelope is created there by another process. If the watch cannot be set
// up, waits keep working on the poll interval alone. Run blocks until ctx is
// done and only returns nil.
func (s *Store) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "guard.watch_unavailable").
			Msg("fsnotify unavailable, response waits fall back to polling")
		<-ctx.Done()
		return nil
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(s.fromReplica); err != nil {
		s.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "guard.watch_unavailable").
			Str(xglog.FieldPath, s.fromReplica).
			Msg("cannot watch response directory, response waits fall back to polling")
		<-ctx.Done()
		return nil
	}

	s.logger.Info().
		Str(xglog.FieldEvent, "guard.watch_started").
		Str(xglog.FieldPath, s.fromReplica).
		Msg("watching for response envelopes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic renames surface as Create for the final name.
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if name := filepath.Base(event.Name); isEnvelopeName(name) {
					s.waiters.notify(name)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Str(xglog.FieldEvent, "guard.watch_error").Msg("fsnotify watcher error")
		}
	}
}
