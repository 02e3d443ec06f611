// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/netguard/internal/envelope"
	"github.com/ManuGH/netguard/internal/guard"
	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/metrics"
	"github.com/ManuGH/netguard/internal/telemetry"
)

const (
	// DefaultReplicaURL is the replica server's replication endpoint.
	DefaultReplicaURL = "http://localhost:8000/apply.xqy"
	// DefaultReplicaTimeout bounds one outbound call.
	DefaultReplicaTimeout = 60 * time.Second
)

// NewHTTPClient returns the client used for replica calls. Compression is
// left to the peers so encoded bodies pass through untouched.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultReplicaTimeout
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DisableCompression = true
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(base),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Replica is the replica-side face. It turns each arrived request envelope
// into a call to the replica endpoint and writes the reply back as a
// response envelope.
type Replica struct {
	store  *guard.Store
	codec  *envelope.Codec
	client *http.Client
	url    string
	logger zerolog.Logger
}

// NewReplica returns a replica face that forwards to url. A nil client
// means NewHTTPClient(DefaultReplicaTimeout).
func NewReplica(store *guard.Store, codec *envelope.Codec, client *http.Client, url string, logger zerolog.Logger) *Replica {
	if client == nil {
		client = NewHTTPClient(DefaultReplicaTimeout)
	}
	if url == "" {
		url = DefaultReplicaURL
	}
	return &Replica{
		store:  store,
		codec:  codec,
		client: client,
		url:    url,
		logger: logger.With().Str(xglog.FieldFace, faceReplica).Logger(),
	}
}

// HandleRequestFile relays one request envelope. It matches
// guard.ArrivalHandler. No response file is written on failure.
func (r *Replica) HandleRequestFile(ctx context.Context, path string) (err error) {
	defer func() { metrics.IncRelayCycle(faceReplica, errorClass(err)) }()

	id, err := guard.IDFromRequestPath(path)
	if err != nil {
		return err
	}
	if xglog.CorrelationIDFromContext(ctx) == "" {
		ctx = xglog.ContextWithCorrelationID(ctx, id)
	}
	logger := xglog.WithContext(ctx, r.logger)

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "relay.replica",
		trace.WithAttributes(telemetry.RelayAttributes(faceReplica, id)...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errorClass(err))
			span.SetAttributes(telemetry.ErrorAttributes(errorClass(err))...)
		}
		span.End()
	}()

	raw, err := r.store.ReadEnvelope(path)
	if err != nil {
		return err
	}
	req, err := r.codec.Decode(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if req.Kind != envelope.KindRequest {
		return fmt.Errorf("%w: %s: root element %q, want %q", ErrMalformedEnvelope, path, req.Kind, envelope.KindRequest)
	}

	resp, err := r.Forward(ctx, req)
	if err != nil {
		return err
	}

	data := r.codec.Encode(resp)
	span.SetAttributes(telemetry.EnvelopeAttributes(guard.FromReplicaDir, len(data))...)
	if err := r.store.WriteResponseEnvelope(ctx, id, data); err != nil {
		return err
	}

	logger.Info().
		Str(xglog.FieldEvent, "relay.replica_done").
		Int(xglog.FieldStatus, resp.Status).
		Int(xglog.FieldBytes, len(resp.Body)).
		Msg("relayed request to replica")
	return nil
}

// Forward posts req to the replica endpoint and returns the reply as a
// response message. Header names are sent exactly as recorded. Any status
// is a valid reply; only a failed exchange is an error.
func (r *Replica) Forward(ctx context.Context, req envelope.Message) (envelope.Message, error) {
	logger := xglog.WithContext(ctx, r.logger)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(req.Body))
	if err != nil {
		return envelope.Message{}, fmt.Errorf("%w: build request for %s: %w", ErrTransport, r.url, err)
	}
	httpReq.Header = make(http.Header, len(req.Header))
	req.Header.CopyTo(httpReq.Header)
	for _, f := range req.Header {
		logger.Debug().
			Str(xglog.FieldEvent, "relay.header_copied").
			Str(xglog.FieldDirection, "outbound").
			Str("name", f.Name).
			Strs("values", f.Values).
			Msg("copy header")
	}

	span := trace.SpanFromContext(ctx)
	start := time.Now()
	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		metrics.ObserveUpstream(0, time.Since(start))
		span.SetAttributes(telemetry.HTTPAttributes(http.MethodPost, r.url, 0)...)
		return envelope.Message{}, fmt.Errorf("%w: POST %s: %w", ErrTransport, r.url, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	metrics.ObserveUpstream(httpResp.StatusCode, elapsed)
	span.SetAttributes(telemetry.HTTPAttributes(http.MethodPost, r.url, httpResp.StatusCode)...)
	if err != nil {
		return envelope.Message{}, fmt.Errorf("%w: read reply from %s: %w", ErrTransport, r.url, err)
	}

	logger.Debug().
		Str(xglog.FieldEvent, "relay.upstream_replied").
		Str(xglog.FieldURL, r.url).
		Int(xglog.FieldStatus, httpResp.StatusCode).
		Int64(xglog.FieldDurationMS, elapsed.Milliseconds()).
		Int(xglog.FieldBytes, len(body)).
		Msg("replica replied")

	return envelope.Message{
		Kind:   envelope.KindResponse,
		Status: httpResp.StatusCode,
		Header: envelope.HeaderFromHTTP(httpResp.Header),
		Body:   body,
	}, nil
}
