// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package guard implements the network guard hand-off: two directories, the
// correlation-ID file naming scheme, atomic envelope writes and the
// rendezvous wait for response envelopes.
package guard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/netguard/internal/log"
	"github.com/ManuGH/netguard/internal/metrics"
)

const (
	FromMasterDir  = "from-master"
	FromReplicaDir = "from-replica"

	ResponsePrefix = "response-"
	EnvelopeExt    = ".xml"

	DefaultRoot         = "network-guard"
	DefaultPollInterval = time.Second
)

// Config locates the guard directories.
type Config struct {
	// Root holds the from-master and from-replica directories.
	Root string
	// PollInterval is the fallback existence check interval for waits.
	PollInterval time.Duration
}

// Store owns the directory pair and the naming convention. It is safe for
// concurrent use; distinct correlation IDs never contend.
type Store struct {
	fromMaster  string
	fromReplica string
	poll        time.Duration
	logger      zerolog.Logger
	waiters     *waiters
}

// New creates both guard directories (with parents) and returns a store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	root := cfg.Root
	if root == "" {
		root = DefaultRoot
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	s := &Store{
		fromMaster:  filepath.Join(root, FromMasterDir),
		fromReplica: filepath.Join(root, FromReplicaDir),
		poll:        poll,
		logger:      logger,
		waiters:     newWaiters(),
	}
	for _, dir := range []string{s.fromMaster, s.fromReplica} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %w", ErrIO, dir, err)
		}
	}

	logger.Info().
		Str(xglog.FieldEvent, "guard.ready").
		Str("from_master", s.fromMaster).
		Str("from_replica", s.fromReplica).
		Dur("poll_interval", poll).
		Msg("guard directories ready")
	return s, nil
}

// FromMasterDir returns the directory request envelopes are written to.
func (s *Store) FromMasterDir() string { return s.fromMaster }

// FromReplicaDir returns the directory response envelopes are written to.
func (s *Store) FromReplicaDir() string { return s.fromReplica }

// PollInterval returns the fallback poll interval.
func (s *Store) PollInterval() time.Duration { return s.poll }

// RequestPath returns <from-master>/<id>.xml.
func (s *Store) RequestPath(id string) string {
	return filepath.Join(s.fromMaster, id+EnvelopeExt)
}

// ResponsePath returns <from-replica>/response-<id>.xml.
func (s *Store) ResponsePath(id string) string {
	return filepath.Join(s.fromReplica, responseName(id))
}

func responseName(id string) string {
	return ResponsePrefix + id + EnvelopeExt
}

// ValidateID rejects IDs that are not usable as a single path element.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidID, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidID, id)
	}
	return nil
}

// IDFromRequestPath derives the correlation ID from a request envelope path.
func IDFromRequestPath(path string) (string, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, EnvelopeExt) {
		return "", fmt.Errorf("%w: %q is not an envelope file", ErrInvalidID, base)
	}
	id := strings.TrimSuffix(base, EnvelopeExt)
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return id, nil
}

// WriteRequestEnvelope commits data to <from-master>/<id>.xml.
func (s *Store) WriteRequestEnvelope(ctx context.Context, id string, data []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return s.write(ctx, s.RequestPath(id), FromMasterDir, data)
}

// WriteResponseEnvelope commits data to <from-replica>/response-<id>.xml and
// wakes any in-process waiter for id.
func (s *Store) WriteResponseEnvelope(ctx context.Context, id string, data []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.write(ctx, s.ResponsePath(id), FromReplicaDir, data); err != nil {
		return err
	}
	s.waiters.notify(responseName(id))
	return nil
}

// write is temp file + fsync + rename, so a poller either sees no file or
// the complete envelope.
func (s *Store) write(ctx context.Context, path, direction string, data []byte) error {
	logger := xglog.WithContext(ctx, s.logger)

	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return fmt.Errorf("%w: create pending envelope %s: %w", ErrIO, path, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(xglog.FieldPath, path).Msg("cleanup pending envelope")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("%w: write envelope %s: %w", ErrIO, path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: commit envelope %s: %w", ErrIO, path, err)
	}

	metrics.IncEnvelopeWritten(direction)
	logger.Info().
		Str(xglog.FieldEvent, "guard.envelope_written").
		Str(xglog.FieldDirection, direction).
		Str(xglog.FieldPath, path).
		Int(xglog.FieldBytes, len(data)).
		Msg("wrote envelope")
	return nil
}

// ReadEnvelope reads a committed envelope file.
func (s *Store) ReadEnvelope(path string) ([]byte, error) {
	// #nosec G304 -- paths are built from the guard directories
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read envelope %s: %w", ErrIO, path, err)
	}
	return data, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// isEnvelopeName filters out renameio temp files, probes and foreign files.
func isEnvelopeName(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, EnvelopeExt)
}
