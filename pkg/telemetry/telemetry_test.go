package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/types"
)

func requestContext() context.Context {
	ctx := context.WithValue(context.Background(), types.ContextKeyUserID, "alice")
	return context.WithValue(ctx, types.ContextKeySessionID, "s-1")
}

func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	return files
}

func TestParquetHandler(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	h, err := NewParquetHandler(slog.NewTextHandler(&out, nil), dir, WithBatchSize(2))
	require.NoError(t, err)

	log := slog.New(h).With("dataset", "rotten_tomatoes")
	ctx := requestContext()

	log.InfoContext(ctx, "not persisted")
	log.ErrorContext(ctx, "rating failed", "meta_path_id", 3)
	assert.Empty(t, parquetFiles(t, dir), "below batch size")

	log.ErrorContext(ctx, "persist failed")
	files := parquetFiles(t, dir)
	require.Len(t, files, 1)

	events, err := parquet.ReadFile[Event](files[0])
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "rating failed", events[0].Message)
	assert.Equal(t, "ERROR", events[0].Level)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Equal(t, "s-1", events[0].SessionID)
	assert.Equal(t, "rotten_tomatoes", events[0].Dataset)
	assert.JSONEq(t, `{"dataset":"rotten_tomatoes","meta_path_id":3}`, events[0].Attributes)
	assert.NotEmpty(t, events[0].ID)

	assert.Contains(t, out.String(), "not persisted", "records are forwarded")
}

func TestParquetHandlerClose(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), dir)
	require.NoError(t, err)

	require.NoError(t, h.Close(), "empty buffer writes nothing")
	assert.Empty(t, parquetFiles(t, dir))

	slog.New(h).WithGroup("req").Error("boom")
	require.NoError(t, h.Close())
	assert.Len(t, parquetFiles(t, dir), 1)
}

func TestSQLHandler(t *testing.T) {
	db, err := OpenDB("sqlite://" + filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	h, err := NewSQLHandler(ctx, slog.NewTextHandler(&bytes.Buffer{}, nil), db)
	require.NoError(t, err)

	var failures []error
	h.OnError(func(err error) { failures = append(failures, err) })

	log := slog.New(h)
	log.WarnContext(requestContext(), "skipped")
	log.ErrorContext(requestContext(), "learner refit failed", "dataset", "movies_small")
	assert.Empty(t, failures)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+DefaultTable).Scan(&count))
	assert.Equal(t, 1, count)

	var msg, user, dataset string
	require.NoError(t, db.QueryRow("SELECT message, user_id, dataset FROM "+DefaultTable).Scan(&msg, &user, &dataset))
	assert.Equal(t, "learner refit failed", msg)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "movies_small", dataset)
}

func TestOpenDB(t *testing.T) {
	_, err := OpenDB("postgres://localhost/x")
	assert.Error(t, err)
	_, err = OpenDB("nonsense")
	assert.Error(t, err)
	db, err := OpenDB("mysql://user:pw@tcp(127.0.0.1:3306)/metaexp")
	require.NoError(t, err, "mysql opens lazily")
	require.NoError(t, db.Close())
}

func TestSetup(t *testing.T) {
	base := slog.NewTextHandler(&bytes.Buffer{}, nil)

	h, closeFn, err := Setup(context.Background(), config.TelemetryConfig{}, base)
	require.NoError(t, err)
	assert.Same(t, base, h)
	assert.NoError(t, closeFn())

	dir := t.TempDir()
	cfg := config.TelemetryConfig{
		ParquetPath: filepath.Join(dir, "events"),
		DbURL:       "sqlite://" + filepath.Join(dir, "telemetry.db"),
	}
	h, closeFn, err = Setup(context.Background(), cfg, base)
	require.NoError(t, err)
	_, ok := h.(*SQLHandler)
	assert.True(t, ok)

	slog.New(h).Error("boom")
	require.NoError(t, closeFn())
	assert.Len(t, parquetFiles(t, cfg.ParquetPath), 1)

	_, err = os.Stat(filepath.Join(dir, "telemetry.db"))
	assert.NoError(t, err)
}
