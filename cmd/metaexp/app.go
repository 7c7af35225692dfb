package metaexp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/soundprediction/metaexp"
	"github.com/soundprediction/metaexp/pkg/alert"
	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/driver"
	"github.com/soundprediction/metaexp/pkg/loader"
	"github.com/soundprediction/metaexp/pkg/logger"
	"github.com/soundprediction/metaexp/pkg/persistence"
	"github.com/soundprediction/metaexp/pkg/telemetry"
)

// neo4jDataset is the name the live Neo4j dataset is registered under.
const neo4jDataset = "neo4j"

// app is everything a command needs, built once from configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *metaexp.Client
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	handler, closeTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, logger.NewHandler(os.Stderr, cfg.Log))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return closeTelemetry() })
	a.logger = slog.New(handler)

	datasets, err := loader.NewDispatcherFromDir(cfg.Datasets.Dir)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}

	if cfg.Database.URI != "" {
		if err := a.registerNeo4j(ctx, datasets); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
	}

	store, err := persistence.Open(cfg.Persistence, a.logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Persistence.Backend, err)
	}

	client, err := metaexp.NewClient(datasets, store, metaexp.ConfigFromAppConfig(cfg), a.logger)
	if err != nil {
		_ = store.Close()
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to create metaexp client: %w", err)
	}
	a.client = client
	// Client.Close closes the store; it must run before telemetry shuts down.
	a.closers = append(a.closers, client.Close)

	a.logger.Info("metaexp initialized",
		"datasets", datasets.Names(),
		"mode", cfg.Learning.Mode,
		"persistence", cfg.Persistence.Backend)
	return a, nil
}

// registerNeo4j adds the live dataset backed by a circuit-breaking Neo4j source.
func (a *app) registerNeo4j(ctx context.Context, datasets *loader.Dispatcher) error {
	db := a.cfg.Database
	neo, err := driver.NewNeo4jDriver(db.URI, db.Username, db.Password, db.Database)
	if err != nil {
		return fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	a.closers = append(a.closers, neo.Close)

	if err := neo.VerifyConnectivity(ctx); err != nil {
		a.logger.Warn("neo4j unreachable, live dataset may fail until it recovers", "uri", db.URI, "error", err)
	}

	source := driver.NewCircuitBreakerSource(neo, a.cfg.CircuitBreaker, alert.New(a.cfg.Alert, a.logger), a.logger, neo4jDataset)
	datasets.Register(loader.NewNeo4jLoader(neo4jDataset,
		fmt.Sprintf("Meta-paths enumerated live from %s", db.URI),
		source,
		loader.WithMaxLength(db.MaxPathLength)))
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
