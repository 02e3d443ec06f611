// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/guard"
)

const testPoll = 20 * time.Millisecond

func newTestStore(t *testing.T) *guard.Store {
	t.Helper()
	s, err := guard.New(guard.Config{Root: t.TempDir(), PollInterval: testPoll}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func newTestCodec(t *testing.T, opts ...envelope.Option) *envelope.Codec {
	t.Helper()
	c, err := envelope.NewCodec(opts...)
	require.NoError(t, err)
	return c
}

// runArrivals runs an arrival watcher over store until the test ends.
func runArrivals(t *testing.T, store *guard.Store, handle guard.ArrivalHandler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := guard.NewArrivalWatcher(store, handle, guard.ArrivalOptions{
		Concurrency:  2,
		ScanInterval: testPoll,
	}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// runResponder answers every request envelope with respond(req) without
// involving HTTP. Decoded requests are sent on the returned channel.
func runResponder(t *testing.T, store *guard.Store, codec *envelope.Codec, respond func(envelope.Message) envelope.Message) <-chan envelope.Message {
	t.Helper()
	seen := make(chan envelope.Message, 8)
	runArrivals(t, store, func(ctx context.Context, path string) error {
		raw, err := store.ReadEnvelope(path)
		if err != nil {
			return err
		}
		req, err := codec.Decode(raw)
		if err != nil {
			return err
		}
		seen <- req
		id, err := guard.IDFromRequestPath(path)
		if err != nil {
			return err
		}
		return store.WriteResponseEnvelope(ctx, id, codec.Encode(respond(req)))
	})
	return seen
}
