// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/netguard/internal/envelope"
)

func newFlexrepRequest(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/apply.xqy", strings.NewReader(body))
	req.Header.Set("Content-Type", FlexrepMediaType+"; boundary="+id)
	return req
}

func TestMaster_RelaysResponse(t *testing.T) {
	store := newTestStore(t)
	codec := newTestCodec(t)
	seen := runResponder(t, store, codec, func(envelope.Message) envelope.Message {
		return envelope.Message{
			Kind:   envelope.KindResponse,
			Status: http.StatusCreated,
			Header: envelope.Header{
				{Name: "Content-Type", Values: []string{"text/plain"}},
				{Name: "X-Reply", Values: []string{"a", "b"}},
			},
			Body: []byte("done\r\n"),
		}
	})

	m := NewMaster(store, codec, MasterConfig{AwaitTimeout: 5 * time.Second}, zerolog.Nop())
	req := newFlexrepRequest("cycle-1", "A&B\r\n<ok>")
	req.Header["X-Test"] = []string{"v1", "v2"}
	rec := httptest.NewRecorder()

	m.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"a", "b"}, rec.Header().Values("X-Reply"))
	assert.Equal(t, "done\r\n", rec.Body.String())

	select {
	case got := <-seen:
		assert.Equal(t, envelope.KindRequest, got.Kind)
		assert.Equal(t, []string{"v1", "v2"}, got.Header.Values("X-Test"))
		assert.Equal(t, "A&B\r\n<ok>", string(got.Body))
	default:
		t.Fatal("responder never saw the request")
	}
	assert.FileExists(t, store.RequestPath("cycle-1"))
}

func TestMaster_DefaultsStatusToOK(t *testing.T) {
	store := newTestStore(t)
	codec := newTestCodec(t)
	runResponder(t, store, codec, func(envelope.Message) envelope.Message {
		return envelope.Message{Kind: envelope.KindResponse, Body: []byte("ok")}
	})

	m := NewMaster(store, codec, MasterConfig{AwaitTimeout: 5 * time.Second}, zerolog.Nop())
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, newFlexrepRequest("no-status", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMaster_MissingCorrelationID(t *testing.T) {
	store := newTestStore(t)
	m := NewMaster(store, newTestCodec(t), MasterConfig{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/apply.xqy", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/xml")
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	entries, err := os.ReadDir(store.FromMasterDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "no envelope may be written without a correlation id")
}

func TestMaster_AwaitTimeout(t *testing.T) {
	store := newTestStore(t)
	m := NewMaster(store, newTestCodec(t), MasterConfig{AwaitTimeout: 60 * time.Millisecond}, zerolog.Nop())

	rec := httptest.NewRecorder()
	start := time.Now()
	m.ServeHTTP(rec, newFlexrepRequest("never-answered", "ping"))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, http.StatusText(http.StatusGatewayTimeout)+"\n", rec.Body.String())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.FileExists(t, store.RequestPath("never-answered"))
}

func TestMaster_Relay_TransportOnTimeout(t *testing.T) {
	store := newTestStore(t)
	m := NewMaster(store, newTestCodec(t), MasterConfig{AwaitTimeout: 40 * time.Millisecond}, zerolog.Nop())

	_, err := m.Relay(context.Background(), FlexrepMediaType+"; boundary=late", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMaster_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not xml", data: "garbage"},
		{name: "wrong root", data: "<nope/>"},
		{name: "request instead of response", data: "<flexrep-request><headers></headers><body></body></flexrep-request>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, store.WriteResponseEnvelope(context.Background(), "bad", []byte(tt.data)))

			m := NewMaster(store, newTestCodec(t), MasterConfig{AwaitTimeout: time.Second}, zerolog.Nop())
			rec := httptest.NewRecorder()
			m.ServeHTTP(rec, newFlexrepRequest("bad", "x"))

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, http.StatusText(http.StatusBadGateway)+"\n", rec.Body.String())
			assert.NotContains(t, rec.Body.String(), store.FromReplicaDir())
		})
	}
}

func TestMaster_BodyTooLarge(t *testing.T) {
	store := newTestStore(t)
	m := NewMaster(store, newTestCodec(t), MasterConfig{MaxBodyBytes: 4}, zerolog.Nop())

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, newFlexrepRequest("big", "0123456789"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NoFileExists(t, store.RequestPath("big"))
}

func TestMaster_DropsMismatchedContentLength(t *testing.T) {
	for _, name := range []string{"Content-Length", "content-length", "CONTENT-LENGTH"} {
		t.Run(name, func(t *testing.T) {
			store := newTestStore(t)
			codec := newTestCodec(t)
			runResponder(t, store, codec, func(envelope.Message) envelope.Message {
				return envelope.Message{
					Kind:   envelope.KindResponse,
					Status: http.StatusOK,
					Header: envelope.Header{{Name: name, Values: []string{"999"}}},
					Body:   []byte("short"),
				}
			})

			srv := httptest.NewServer(NewMaster(store, codec, MasterConfig{AwaitTimeout: 5 * time.Second}, zerolog.Nop()))
			defer srv.Close()

			req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("x"))
			require.NoError(t, err)
			req.Header.Set("Content-Type", FlexrepMediaType+"; boundary=cl")
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, int64(len("short")), resp.ContentLength)
			assert.Equal(t, "short", string(body))
		})
	}
}

func TestDropStaleContentLength(t *testing.T) {
	tests := []struct {
		name     string
		recorded envelope.Header
		wantKeys []string
	}{
		{
			name:     "matching length kept",
			recorded: envelope.Header{{Name: "content-length", Values: []string{"5"}}},
			wantKeys: []string{"content-length"},
		},
		{
			name:     "lowercase mismatch dropped",
			recorded: envelope.Header{{Name: "content-length", Values: []string{"999"}}},
		},
		{
			name: "other fields untouched",
			recorded: envelope.Header{
				{Name: "Content-Length", Values: []string{"999"}},
				{Name: "X-Length", Values: []string{"999"}},
			},
			wantKeys: []string{"X-Length"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := tt.recorded.HTTP()
			dropStaleContentLength(dst, tt.recorded, len("short"))

			keys := make([]string, 0, len(dst))
			for k := range dst {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.wantKeys, keys)
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: ErrMissingCorrelationID, want: http.StatusBadRequest},
		{err: ErrMalformedEnvelope, want: http.StatusBadGateway},
		{err: ErrTransport, want: http.StatusGatewayTimeout},
		{err: ErrIO, want: http.StatusInternalServerError},
		{err: context.Canceled, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpStatus(tt.err), tt.err.Error())
	}
	assert.Equal(t, "success", errorClass(nil))
	assert.Equal(t, "transport", errorClass(ErrTransport))
}
