// Package telemetry persists error-level log records for later analysis of
// rating sessions. Handlers wrap another slog.Handler and always forward to it.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/metaexp/pkg/types"
)

// Event is one persisted log record.
type Event struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	UserID        string    `parquet:"user_id"`
	SessionID     string    `parquet:"session_id"`
	Dataset       string    `parquet:"dataset"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON object
}

// newEvent captures r together with the request identity carried by ctx and
// the attributes preset on the handler.
func newEvent(ctx context.Context, r slog.Record, preset []slog.Attr) Event {
	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: r.Time.UTC(),
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	if v, ok := ctx.Value(types.ContextKeyUserID).(string); ok {
		ev.UserID = v
	}
	if v, ok := ctx.Value(types.ContextKeySessionID).(string); ok {
		ev.SessionID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestSource).(string); ok {
		ev.RequestSource = v
	}

	attrs := make(map[string]any, len(preset)+r.NumAttrs())
	collect := func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Resolve().Any()
		if a.Key == "dataset" && ev.Dataset == "" {
			ev.Dataset = a.Value.String()
		}
		return true
	}
	for _, a := range preset {
		collect(a)
	}
	r.Attrs(collect)
	if b, err := json.Marshal(attrs); err == nil {
		ev.Attributes = string(b)
	} else {
		ev.Attributes = "{}"
	}

	if r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		ev.SourceFile = f.File
		ev.LineNumber = f.Line
	}
	return ev
}
