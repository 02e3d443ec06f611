// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/guard"
)

type capturedRequest struct {
	Method string
	Header http.Header
	Body   string
}

// newUpstream starts a replica endpoint that records each request and
// answers with handler.
func newUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	got := make(chan capturedRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- capturedRequest{Method: r.Method, Header: r.Header.Clone(), Body: string(body)}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestReplica(t *testing.T, store *guard.Store, codec *envelope.Codec, url string) *Replica {
	t.Helper()
	client := NewHTTPClient(5 * time.Second)
	t.Cleanup(client.CloseIdleConnections)
	return NewReplica(store, codec, client, url, zerolog.Nop())
}

func writeRequest(t *testing.T, store *guard.Store, codec *envelope.Codec, id string, m envelope.Message) string {
	t.Helper()
	require.NoError(t, store.WriteRequestEnvelope(context.Background(), id, codec.Encode(m)))
	return store.RequestPath(id)
}

func readResponse(t *testing.T, store *guard.Store, codec *envelope.Codec, id string) envelope.Message {
	t.Helper()
	raw, err := store.ReadEnvelope(store.ResponsePath(id))
	require.NoError(t, err)
	m, err := codec.Decode(raw)
	require.NoError(t, err)
	return m
}

func TestReplica_HandleRequestFile(t *testing.T) {
	store := newTestStore(t)
	codec := newTestCodec(t)
	srv, got := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header()["X-Multi"] = []string{"one", "two"}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "done\r\n")
	})

	path := writeRequest(t, store, codec, "r1", envelope.Message{
		Kind: envelope.KindRequest,
		Header: envelope.Header{
			{Name: "Content-Type", Values: []string{FlexrepMediaType + "; boundary=r1"}},
			{Name: "X-Test", Values: []string{"v1", "v2"}},
		},
		Body: []byte("A&B\r\n<ok>"),
	})

	require.NoError(t, newTestReplica(t, store, codec, srv.URL).HandleRequestFile(context.Background(), path))

	req := <-got
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, []string{"v1", "v2"}, req.Header.Values("X-Test"))
	assert.Equal(t, FlexrepMediaType+"; boundary=r1", req.Header.Get("Content-Type"))
	assert.Equal(t, "A&B\r\n<ok>", req.Body)

	resp := readResponse(t, store, codec, "r1")
	assert.Equal(t, envelope.KindResponse, resp.Kind)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, []string{"one", "two"}, resp.Header.Values("X-Multi"))
	assert.Equal(t, "done\r\n", string(resp.Body))
}

func TestReplica_PassesThroughErrorStatus(t *testing.T) {
	store := newTestStore(t)
	codec := newTestCodec(t)
	srv, _ := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})

	path := writeRequest(t, store, codec, "r503", envelope.Message{Kind: envelope.KindRequest})
	require.NoError(t, newTestReplica(t, store, codec, srv.URL).HandleRequestFile(context.Background(), path))

	resp := readResponse(t, store, codec, "r503")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, "busy\n", string(resp.Body))
}

func TestReplica_ConnectionFailure(t *testing.T) {
	store := newTestStore(t)
	codec := newTestCodec(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	path := writeRequest(t, store, codec, "down", envelope.Message{Kind: envelope.KindRequest, Body: []byte("x")})
	err := newTestReplica(t, store, codec, url).HandleRequestFile(context.Background(), path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NoFileExists(t, store.ResponsePath("down"))
}

func TestReplica_MalformedRequest(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not xml", data: "<<<"},
		{name: "response root", data: "<flexrep-response><headers></headers><body></body></flexrep-response>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			codec := newTestCodec(t)
			srv, got := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {})

			require.NoError(t, store.WriteRequestEnvelope(context.Background(), "bad", []byte(tt.data)))
			err := newTestReplica(t, store, codec, srv.URL).HandleRequestFile(context.Background(), store.RequestPath("bad"))

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
			assert.NoFileExists(t, store.ResponsePath("bad"))
			assert.Empty(t, got, "replica endpoint must not be called")
		})
	}
}

func TestReplica_Forward_DoesNotFollowRedirects(t *testing.T) {
	store := newTestStore(t)
	codec := newTestCodec(t)
	srv, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})

	resp, err := newTestReplica(t, store, codec, srv.URL).Forward(context.Background(), envelope.Message{Kind: envelope.KindRequest})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}

func TestReplica_Forward_KeepsEncodedBodies(t *testing.T) {
	gz := []byte{0x1f, 0x8b, 0x08, 0x00, 0x00}
	store := newTestStore(t)
	codec := newTestCodec(t)
	srv, got := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(gz)
	})

	resp, err := newTestReplica(t, store, codec, srv.URL).Forward(context.Background(), envelope.Message{
		Kind:   envelope.KindRequest,
		Header: envelope.Header{{Name: "Accept-Encoding", Values: []string{"gzip"}}},
	})
	require.NoError(t, err)

	req := <-got
	assert.Equal(t, "gzip", req.Header.Get("Accept-Encoding"))
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	if diff := cmp.Diff(gz, resp.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}
