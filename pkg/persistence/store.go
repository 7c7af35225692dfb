// Package persistence stores the rating history of finished sessions.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/types"
)

var (
	// ErrInvalidName is returned when a dataset or user name is unsafe to use
	// in a file name or key.
	ErrInvalidName = errors.New("invalid name: contains path traversal or invalid characters")
	// ErrUnknownBackend is returned by Open for an unsupported backend.
	ErrUnknownBackend = errors.New("unknown persistence backend")
)

// SessionRecord is everything persisted when a session ends.
type SessionRecord struct {
	SessionID    string               `json:"session_id"`
	Dataset      string               `json:"dataset"`
	Username     string               `json:"username"`
	Purpose      string               `json:"purpose"`
	StartNodeIDs []int64              `json:"start_node_ids,omitempty"`
	EndNodeIDs   []int64              `json:"end_node_ids,omitempty"`
	MetaPaths    []types.RatingOutput `json:"meta_paths"`
	StartedAt    time.Time            `json:"started_at"`
	EndedAt      time.Time            `json:"ended_at"`
}

// Validate checks the fields used to name the stored record.
func (r *SessionRecord) Validate() error {
	if err := validateName(r.Dataset); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	if err := validateName(r.Username); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	return nil
}

// Store persists session records.
type Store interface {
	Save(ctx context.Context, record *SessionRecord) error
	List(ctx context.Context, dataset string) ([]*SessionRecord, error)
	Close() error
}

// Open creates the store selected by cfg.Backend.
func Open(cfg config.PersistenceConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "json":
		return NewJSONStore(cfg.Dir)
	case "parquet":
		return NewParquetStore(cfg.Dir)
	case "badger":
		return NewBadgerStore(BadgerOptions{Dir: cfg.Dir, Logger: logger})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// validateName rejects names containing path separators, path traversal
// sequences, null bytes or the file name separator.
func validateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if strings.Contains(name, "..") {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	if strings.ContainsRune(name, '\x00') {
		return ErrInvalidName
	}
	return nil
}

func endedAt(r *SessionRecord) time.Time {
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now()
	}
	return r.EndedAt
}
