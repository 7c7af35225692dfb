package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/soundprediction/metaexp/pkg/config"
)

// Setup wraps base with the handlers enabled in cfg. The returned close
// function flushes parquet output and closes the database.
func Setup(ctx context.Context, cfg config.TelemetryConfig, base slog.Handler) (slog.Handler, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	h := base
	if cfg.ParquetPath != "" {
		ph, err := NewParquetHandler(h, cfg.ParquetPath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, ph.Close)
		h = ph
	}

	if cfg.DbURL != "" {
		db, err := OpenDB(cfg.DbURL)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		sh, err := NewSQLHandler(ctx, h, db)
		if err != nil {
			_ = db.Close()
			_ = closeAll()
			return nil, nil, err
		}
		sh.OnError(func(err error) {
			fmt.Fprintf(os.Stderr, "failed to write telemetry event: %v\n", err)
		})
		closers = append(closers, db.Close)
		h = sh
	}

	return h, closeAll, nil
}
