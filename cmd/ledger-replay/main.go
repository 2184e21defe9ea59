// Package main is the entrypoint for the Ledger Replay Lambda function.
//
// The API publishes a usage entry to the replay queue when its ledger append
// fails after a report was already delivered. This function consumes that
// queue and appends each entry again. Appends are keyed by the entry id, so
// a redelivered message, or one whose original write later succeeded, is a
// no-op.
//
// This file handles dependency wiring (Cold Start) and delegates message
// handling to queue.ReplayConsumer.
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"stockbrief/internal/config"
	"stockbrief/internal/db"
	"stockbrief/internal/queue"
	"stockbrief/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger's With returns *slog.Logger rather than types.Logger, so an
// adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Compile-time assertion that slogAdapter implements types.Logger.
var _ types.Logger = (*slogAdapter)(nil)

// databaseConfigFromEnv reads the pool settings this function needs. A
// replay batch is processed sequentially, so a small pool suffices.
func databaseConfigFromEnv() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		URL:               types.SecretString(os.Getenv("DATABASE_URL")),
		MaxConns:          2,
		MinConns:          0,
		MaxConnLifetime:   30 * time.Minute,
		AcquireTimeout:    5 * time.Second,
		HealthCheckPeriod: time.Minute,
	}
	if v, err := strconv.Atoi(os.Getenv("DB_MAX_CONNS")); err == nil && v > 0 {
		cfg.MaxConns = v
	}
	if d, err := time.ParseDuration(os.Getenv("DB_ACQUIRE_TIMEOUT")); err == nil && d > 0 {
		cfg.AcquireTimeout = d
	}
	return cfg
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Ledger Replay Lambda initializing (cold start)")

	// DATABASE_URL is stored in SSM outside local mode and referenced via
	// DATABASE_URL_SSM_PARAM.
	if err := config.ResolveSecrets(config.NewSSMProvider(os.Getenv("AWS_REGION"))); err != nil {
		logger.Error("Failed to resolve SSM secrets", "error", err)
		os.Exit(1)
	}

	dbCfg := databaseConfigFromEnv()
	if dbCfg.URL.IsEmpty() {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	pool, err := db.NewPool(context.Background(), dbCfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	consumer := queue.NewReplayConsumer(db.NewUsageLedgerRepo(pool), &slogAdapter{logger: logger})

	logger.Info("Ledger Replay Lambda initialized",
		"max_conns", dbCfg.MaxConns,
	)

	lambda.Start(consumer.Handle)
}
