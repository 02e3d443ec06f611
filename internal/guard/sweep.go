// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	xglog "github.com/ManuGH/netguard/internal/log"
)

// Sweep removes files in both guard directories last modified before
// now-olderThan and returns how many were removed. Stale temp files from
// interrupted writes are removed too. The relay never calls this itself.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-olderThan)
	removed := 0
	for _, dir := range []string{s.fromMaster, s.fromReplica} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("%w: list %s: %w", ErrIO, dir, err)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue // removed concurrently
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("%w: remove %s: %w", ErrIO, path, err)
			}
			removed++
			s.logger.Debug().
				Str(xglog.FieldEvent, "guard.swept").
				Str(xglog.FieldPath, path).
				Msg("removed envelope")
		}
	}
	return removed, nil
}
