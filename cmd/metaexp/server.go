package metaexp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the MetaExp HTTP server",
	Long: `Start the MetaExp HTTP server used by the rating frontend.

The server provides endpoints for:
- Logging in to a dataset and selecting node sets
- Fetching batches of meta-paths and submitting ratings
- Similarity results and contributing meta-paths
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "0.0.0.0", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8000, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")

	serverCmd.Flags().String("db-uri", "", "Neo4j URI; enables the live neo4j dataset")
	serverCmd.Flags().String("db-username", "", "Neo4j username")
	serverCmd.Flags().String("db-password", "", "Neo4j password")
	serverCmd.Flags().String("db-database", "", "Neo4j database name")

	serverCmd.Flags().String("learning-mode", "", "Selection mode (research, baseline)")
	serverCmd.Flags().String("persistence-backend", "", "Rated session store (json, parquet, badger)")
	serverCmd.Flags().String("persistence-dir", "", "Directory of the rated session store")

	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for error telemetry parquet files")
	serverCmd.Flags().String("telemetry-db-url", "", "Telemetry database (mysql://dsn or sqlite://path)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.New(cfg, a.client, a.logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		_ = a.Close(context.Background())
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		a.logger.Info("received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		// Persists live sessions before exit.
		if err := a.Close(shutdownCtx); err != nil {
			return fmt.Errorf("failed to close: %w", err)
		}
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	stringFlags := map[string]*string{
		"db-uri":                 &cfg.Database.URI,
		"db-username":            &cfg.Database.Username,
		"db-password":            &cfg.Database.Password,
		"db-database":            &cfg.Database.Database,
		"learning-mode":          &cfg.Learning.Mode,
		"persistence-backend":    &cfg.Persistence.Backend,
		"persistence-dir":        &cfg.Persistence.Dir,
		"telemetry-parquet-path": &cfg.Telemetry.ParquetPath,
		"telemetry-db-url":       &cfg.Telemetry.DbURL,
	}
	for flag, dst := range stringFlags {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	return cfg.Validate()
}
