package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// DefaultTable is the table SQLHandler writes to.
const DefaultTable = "telemetry_events"

// SQLHandler writes error events to a SQL table.
type SQLHandler struct {
	next      slog.Handler
	db        *sql.DB
	tableName string
	preset    []slog.Attr
	onError   func(error)
}

// OpenDB opens the database named by url. Supported forms are
// "mysql://<go-sql-driver DSN>" and "sqlite://<path>".
func OpenDB(url string) (*sql.DB, error) {
	scheme, dsn, ok := strings.Cut(url, "://")
	if !ok || dsn == "" {
		return nil, fmt.Errorf("invalid telemetry database url %q", url)
	}
	switch scheme {
	case "mysql", "sqlite":
		return sql.Open(scheme, dsn)
	default:
		return nil, fmt.Errorf("unsupported telemetry database scheme %q", scheme)
	}
}

// NewSQLHandler creates a SQLHandler using an existing DB connection and
// creates its table when missing.
func NewSQLHandler(ctx context.Context, next slog.Handler, db *sql.DB) (*SQLHandler, error) {
	h := &SQLHandler{
		next:      next,
		db:        db,
		tableName: DefaultTable,
		onError:   func(error) {},
	}
	if err := h.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure telemetry table: %w", err)
	}
	return h, nil
}

func (h *SQLHandler) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			occurred_at TIMESTAMP,
			level VARCHAR(10),
			message TEXT,
			user_id VARCHAR(255),
			session_id VARCHAR(255),
			dataset VARCHAR(255),
			request_source VARCHAR(255),
			source_file VARCHAR(255),
			line_number INT,
			attributes JSON
		)
	`, h.tableName)

	_, err := h.db.ExecContext(ctx, query)
	return err
}

// Enabled implements slog.Handler
func (h *SQLHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler. Database failures go to the error hook and
// never fail the logging chain.
func (h *SQLHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	ev := newEvent(ctx, r, h.preset)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, occurred_at, level, message, user_id, session_id, dataset, request_source, source_file, line_number, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.tableName)

	_, err := h.db.ExecContext(context.WithoutCancel(ctx), query,
		ev.ID, ev.Timestamp, ev.Level, ev.Message,
		ev.UserID, ev.SessionID, ev.Dataset, ev.RequestSource,
		ev.SourceFile, ev.LineNumber, ev.Attributes,
	)
	if err != nil {
		h.onError(err)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *SQLHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.preset = append(append([]slog.Attr{}, h.preset...), attrs...)
	return &c
}

// WithGroup implements slog.Handler
func (h *SQLHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	return &c
}

// OnError installs a hook receiving insert failures.
func (h *SQLHandler) OnError(fn func(error)) {
	if fn != nil {
		h.onError = fn
	}
}
