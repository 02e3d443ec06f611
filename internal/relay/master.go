// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/guard"
	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/metrics"
	"github.com/ManuGH/netguard/internal/telemetry"
)

const (
	faceMaster  = "master"
	faceReplica = "replica"

	// DefaultAwaitTimeout bounds how long the master face waits for the
	// replica's response envelope.
	DefaultAwaitTimeout = 5 * time.Minute

	tracerName = "github.com/ManuGH/netguard/internal/relay"
)

// MasterConfig tunes the master face.
type MasterConfig struct {
	// AwaitTimeout bounds the response wait. Zero means DefaultAwaitTimeout.
	AwaitTimeout time.Duration
	// MaxBodyBytes limits the inbound request body. Zero means unlimited.
	MaxBodyBytes int64
}

// Master is the master-side face. It accepts replication requests over HTTP,
// writes them into the guard and answers with the response the replica side
// writes back. Each request is handled independently.
type Master struct {
	store  *guard.Store
	codec  *envelope.Codec
	cfg    MasterConfig
	logger zerolog.Logger
}

// NewMaster returns a master face bound to store.
func NewMaster(store *guard.Store, codec *envelope.Codec, cfg MasterConfig, logger zerolog.Logger) *Master {
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = DefaultAwaitTimeout
	}
	return &Master{
		store:  store,
		codec:  codec,
		cfg:    cfg,
		logger: logger.With().Str(xglog.FieldFace, faceMaster).Logger(),
	}
}

// Relay runs one cycle for a request that has already been read: it writes
// the request envelope, waits for the matching response envelope and
// returns it decoded.
func (m *Master) Relay(ctx context.Context, contentType string, header envelope.Header, body []byte) (envelope.Message, error) {
	id, err := CorrelationID(contentType)
	if err != nil {
		return envelope.Message{}, err
	}
	ctx = xglog.ContextWithCorrelationID(ctx, id)
	logger := xglog.WithContext(ctx, m.logger)

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "relay.master",
		trace.WithAttributes(telemetry.RelayAttributes(faceMaster, id)...))
	defer span.End()
	if rid := xglog.RequestIDFromContext(ctx); rid != "" {
		span.SetAttributes(telemetry.RequestIDAttribute(rid))
	}

	data := m.codec.Encode(envelope.Message{
		Kind:   envelope.KindRequest,
		Header: header,
		Body:   body,
	})
	span.SetAttributes(telemetry.EnvelopeAttributes(guard.FromMasterDir, len(data))...)
	logger.Debug().
		Str(xglog.FieldEvent, "relay.request_encoded").
		Int("headers", len(header)).
		Int(xglog.FieldBytes, len(body)).
		Msg("encoded request")

	if err := m.store.WriteRequestEnvelope(ctx, id, data); err != nil {
		return envelope.Message{}, m.fail(span, err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, m.cfg.AwaitTimeout)
	defer cancel()
	path, err := m.store.AwaitResponseEnvelope(awaitCtx, id)
	if err != nil {
		return envelope.Message{}, m.fail(span, err)
	}

	raw, err := m.store.ReadEnvelope(path)
	if err != nil {
		return envelope.Message{}, m.fail(span, err)
	}
	resp, err := m.codec.Decode(raw)
	if err != nil {
		return envelope.Message{}, m.fail(span, fmt.Errorf("%s: %w", path, err))
	}
	if resp.Kind != envelope.KindResponse {
		return envelope.Message{}, m.fail(span, fmt.Errorf("%w: %s: root element %q, want %q",
			ErrMalformedEnvelope, path, resp.Kind, envelope.KindResponse))
	}
	return resp, nil
}

func (m *Master) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, errorClass(err))
	span.SetAttributes(telemetry.ErrorAttributes(errorClass(err))...)
	return err
}

// ServeHTTP relays r through the guard and writes the decoded response:
// headers in recorded order, then the recorded status (200 when absent),
// then the body.
func (m *Master) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xglog.WithContext(ctx, m.logger)

	src := r.Body
	if m.cfg.MaxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, m.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn().Err(err).Str(xglog.FieldEvent, "relay.body_read_failed").Msg("failed to read request body")
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	resp, err := m.Relay(ctx, r.Header.Get("Content-Type"), envelope.HeaderFromHTTP(r.Header), body)
	class := errorClass(err)
	metrics.IncRelayCycle(faceMaster, class)
	if err != nil {
		status := httpStatus(err)
		evt := logger.Error()
		if status < http.StatusInternalServerError {
			evt = logger.Warn()
		}
		evt.Err(err).
			Str(xglog.FieldEvent, "relay.master_failed").
			Str("error_class", class).
			Int(xglog.FieldStatus, status).
			Msg("relay cycle failed")
		// The detail stays in the log; it names guard paths.
		http.Error(w, http.StatusText(status), status)
		return
	}

	resp.Header.CopyTo(w.Header())
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	dropStaleContentLength(w.Header(), resp.Header, len(resp.Body))
	w.WriteHeader(status)
	if _, err := w.Write(resp.Body); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "relay.reply_write_failed").Msg("failed to write reply")
		return
	}

	logger.Info().
		Str(xglog.FieldEvent, "relay.master_done").
		Int(xglog.FieldStatus, status).
		Int(xglog.FieldBytes, len(resp.Body)).
		Msg("relayed response")
}

// dropStaleContentLength removes a recorded Content-Length, under any
// spelling, that disagrees with the body; it would abort the write.
func dropStaleContentLength(dst http.Header, recorded envelope.Header, size int) {
	want := strconv.Itoa(size)
	for _, f := range recorded {
		if !strings.EqualFold(f.Name, "Content-Length") {
			continue
		}
		for _, v := range f.Values {
			if strings.TrimSpace(v) != want {
				delete(dst, f.Name)
				dst.Del("Content-Length")
				break
			}
		}
	}
}
