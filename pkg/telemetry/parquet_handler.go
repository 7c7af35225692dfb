package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
)

// DefaultBatchSize is the number of events buffered before a parquet file is written.
const DefaultBatchSize = 100

// parquetSink is shared by a handler and every handler derived from it.
type parquetSink struct {
	mu        sync.Mutex
	dir       string
	batchSize int
	buffer    []Event
	now       func() time.Time
}

// ParquetHandler buffers error events and writes them to parquet files in a directory.
type ParquetHandler struct {
	next   slog.Handler
	sink   *parquetSink
	preset []slog.Attr
}

// ParquetOption configures a ParquetHandler.
type ParquetOption func(*parquetSink)

// WithBatchSize sets how many events trigger a flush.
func WithBatchSize(n int) ParquetOption {
	return func(s *parquetSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewParquetHandler creates a ParquetHandler writing below outputDir.
func NewParquetHandler(next slog.Handler, outputDir string, opts ...ParquetOption) (*ParquetHandler, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	sink := &parquetSink{dir: outputDir, batchSize: DefaultBatchSize, now: time.Now}
	for _, opt := range opts {
		opt(sink)
	}
	sink.buffer = make([]Event, 0, sink.batchSize)
	return &ParquetHandler{next: next, sink: sink}, nil
}

// Enabled implements slog.Handler
func (h *ParquetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ParquetHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	ev := newEvent(ctx, r, h.preset)

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.buffer = append(h.sink.buffer, ev)
	if len(h.sink.buffer) >= h.sink.batchSize {
		return h.sink.flush()
	}
	return nil
}

// Flush writes any buffered events.
func (h *ParquetHandler) Flush() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.flush()
}

// Close flushes the buffer. The handler stays usable.
func (h *ParquetHandler) Close() error {
	return h.Flush()
}

// caller must hold s.mu
func (s *parquetSink) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}
	now := s.now()
	name := fmt.Sprintf("session_errors_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	if err := parquet.WriteFile(filepath.Join(s.dir, name), s.buffer); err != nil {
		return fmt.Errorf("failed to write telemetry parquet file: %w", err)
	}
	s.buffer = s.buffer[:0]
	return nil
}

// WithAttrs implements slog.Handler
func (h *ParquetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	preset := append(append([]slog.Attr{}, h.preset...), attrs...)
	return &ParquetHandler{next: h.next.WithAttrs(attrs), sink: h.sink, preset: preset}
}

// WithGroup implements slog.Handler
func (h *ParquetHandler) WithGroup(name string) slog.Handler {
	return &ParquetHandler{next: h.next.WithGroup(name), sink: h.sink, preset: h.preset}
}
