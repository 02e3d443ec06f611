// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	xglog "github.com/ManuGH/netguard/internal/log"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	seen  chan string
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 16)}
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.seen <- path
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func startWatcher(t *testing.T, s *Store, h ArrivalHandler) (stop func()) {
	t.Helper()
	return startWatcherWith(t, s, h, ArrivalOptions{Concurrency: 2, ScanInterval: 30 * time.Millisecond})
}

func startWatcherWith(t *testing.T, s *Store, h ArrivalHandler, opts ArrivalOptions) (stop func()) {
	t.Helper()
	w := NewArrivalWatcher(s, h, opts, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return ""
	}
}

func TestArrivalWatcher_DeliversOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestStore(t, t.TempDir())
	rec := newRecorder()
	stop := startWatcher(t, s, rec.handle)

	require.NoError(t, s.WriteRequestEnvelope(context.Background(), "abc", []byte("<flexrep-request/>")))
	assert.Equal(t, s.RequestPath("abc"), waitFor(t, rec.seen))

	// Several rescans later the file has still been delivered only once.
	time.Sleep(150 * time.Millisecond)
	stop()
	assert.Equal(t, 1, rec.count())
}

func TestArrivalWatcher_PicksUpExistingFiles(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	require.NoError(t, s.WriteRequestEnvelope(context.Background(), "early", []byte("x")))

	rec := newRecorder()
	stop := startWatcher(t, s, rec.handle)
	defer stop()

	assert.Equal(t, s.RequestPath("early"), waitFor(t, rec.seen))
}

func TestArrivalWatcher_SkipsAnsweredAndForeignFiles(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.WriteRequestEnvelope(ctx, "answered", []byte("x")))
	require.NoError(t, s.WriteResponseEnvelope(ctx, "answered", []byte("y")))
	require.NoError(t, os.WriteFile(filepath.Join(s.FromMasterDir(), ".abc.xml123"), []byte("tmp"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.FromMasterDir(), "notes.txt"), []byte("txt"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.FromMasterDir(), "empty.xml"), nil, 0o600))

	rec := newRecorder()
	stop := startWatcher(t, s, rec.handle)

	require.NoError(t, s.WriteRequestEnvelope(ctx, "fresh", []byte("x")))
	assert.Equal(t, s.RequestPath("fresh"), waitFor(t, rec.seen))

	time.Sleep(100 * time.Millisecond)
	stop()
	assert.Equal(t, 1, rec.count())
}

func TestArrivalWatcher_HandlerErrorIsNotRetried(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	calls := make(chan string, 4)
	stop := startWatcher(t, s, func(_ context.Context, path string) error {
		calls <- path
		return assert.AnError
	})

	require.NoError(t, s.WriteRequestEnvelope(context.Background(), "fails", []byte("x")))
	waitFor(t, calls)

	time.Sleep(100 * time.Millisecond)
	stop()
	assert.Empty(t, calls)
}

func TestArrivalWatcher_HandlerGetsCorrelationContext(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	ids := make(chan string, 1)
	stop := startWatcher(t, s, func(ctx context.Context, _ string) error {
		ids <- xglog.CorrelationIDFromContext(ctx)
		return nil
	})
	defer stop()

	require.NoError(t, s.WriteRequestEnvelope(context.Background(), "cid-1", []byte("x")))
	assert.Equal(t, "cid-1", waitFor(t, ids))
}

func TestNewArrivalWatcher_SettleTimeDefaults(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	w := NewArrivalWatcher(s, nil, ArrivalOptions{ScanInterval: time.Minute}, zerolog.Nop())
	assert.Equal(t, DefaultSettleTime, w.opts.SettleTime)

	w = NewArrivalWatcher(s, nil, ArrivalOptions{ScanInterval: 10 * time.Millisecond}, zerolog.Nop())
	assert.Equal(t, 10*time.Millisecond, w.opts.SettleTime)
}

// writeInChunks writes data in place in two halves with a pause between
// them, the way a non-atomic writer would.
func writeInChunks(t *testing.T, path string, data []byte, pause time.Duration) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	half := len(data) / 2
	_, err = f.Write(data[:half])
	require.NoError(t, err)
	time.Sleep(pause)
	_, err = f.Write(data[half:])
	require.NoError(t, err)
}

func TestArrivalWatcher_WaitsForInPlaceWrites(t *testing.T) {
	full := []byte("<flexrep-request><headers></headers><body>complete</body></flexrep-request>")

	tests := []struct {
		name  string
		pause time.Duration
		// partialAllowed is set when the pause outlasts the settle time, so
		// the first half may be delivered and rejected before the rest lands.
		partialAllowed bool
	}{
		{name: "pause shorter than settle time", pause: 5 * time.Millisecond},
		{name: "pause longer than settle time", pause: 300 * time.Millisecond, partialAllowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, t.TempDir())

			var mu sync.Mutex
			var partial int
			complete := make(chan string, 4)
			stop := startWatcherWith(t, s, func(_ context.Context, path string) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if string(data) != string(full) {
					mu.Lock()
					partial++
					mu.Unlock()
					return assert.AnError
				}
				complete <- path
				return nil
			}, ArrivalOptions{Concurrency: 2, ScanInterval: 50 * time.Millisecond, SettleTime: 100 * time.Millisecond})

			path := s.RequestPath("chunked")
			writeInChunks(t, path, full, tt.pause)

			assert.Equal(t, path, waitFor(t, complete))
			time.Sleep(300 * time.Millisecond)
			stop()

			assert.Empty(t, complete, "complete envelope delivered more than once")
			mu.Lock()
			defer mu.Unlock()
			if !tt.partialAllowed {
				assert.Zero(t, partial, "half-written envelope was delivered")
			}
		})
	}
}
