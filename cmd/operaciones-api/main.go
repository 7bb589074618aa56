// Command operaciones-api serves the operations REST contract over SQLite,
// for development and integration tests.
package main

import (
	"os"
	"time"

	"operaciones/internal/apiserver"
	"operaciones/internal/cli"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
	"operaciones/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout, log.ComponentAPIServer)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	srv := apiserver.New(repo, logger, metrics.New())
	if err := srv.Run(ctx, ":"+cfg.APIPort); err != nil {
		logger.Error("API server error", log.FieldError, err, "port", cfg.APIPort)
		_ = repo.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("API server stopped")
}
