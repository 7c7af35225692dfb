package main

import (
	"log/slog"

	"github.com/soundprediction/metaexp/pkg/logger"
)

func main() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    MetaExp Colored Logger Demo")
	log.Info("============================================")

	log.Debug("Debug message - standard color")
	log.Info("session started", "dataset", "rotten_tomatoes", "user", "alice")
	log.Info("batch emitted", "size", 5, "remaining", 3)
	log.Info("Rated session persisted", "backend", "json", "meta_paths", 8)
	log.Warn("rating batch rejected", "error", "rating out of range")
	log.Error("neo4j source unavailable", "error", "circuit breaker is open")
}
