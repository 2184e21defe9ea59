// Package main implements planctl, the operator CLI for StockBrief.
//
// It talks to the database directly and covers the tasks that do not belong
// behind the public API: schema migrations, manual plan overrides, quota
// inspection, and generating the bcrypt hash for ADMIN_API_KEY_HASH.
//
// Usage:
//
//	go run ./cmd/planctl migrate up
//	go run ./cmd/planctl migrate status
//	go run ./cmd/planctl set-plan 6f0c1e0a-... pro
//	go run ./cmd/planctl usage 6f0c1e0a-... --output json
//	echo -n "$ADMIN_KEY" | go run ./cmd/planctl hash-admin-key
//
// DATABASE_URL and QUOTA_TIMEZONE are read from the environment (a local .env
// file is honored). --database-url overrides the former.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"stockbrief/internal/config"
	"stockbrief/internal/db"
	"stockbrief/internal/types"
)

// cliConfig is the subset of the service configuration planctl needs.
type cliConfig struct {
	Database config.DatabaseConfig
	Quota    config.QuotaConfig
}

// store is everything the subcommands do against the database.
type store interface {
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
	SetPlan(ctx context.Context, userID string, plan types.PlanTier) error
	CountSince(ctx context.Context, userID string, action types.UsageAction, since time.Time) (int, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]types.UsageLogEntry, error)
	Migrate(ctx context.Context) error
	MigrationStatus(ctx context.Context) error
	Close()
}

// pgStore backs store with the service repositories.
type pgStore struct {
	*db.ProfileRepo
	*db.UsageLedgerRepo
	pool *pgxpool.Pool
}

func (s *pgStore) Migrate(ctx context.Context) error         { return db.Migrate(ctx, s.pool) }
func (s *pgStore) MigrationStatus(ctx context.Context) error { return db.MigrationStatus(ctx, s.pool) }
func (s *pgStore) Close()                                    { s.pool.Close() }

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (store, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pgStore{
		ProfileRepo:     db.NewProfileRepo(pool, nil),
		UsageLedgerRepo: db.NewUsageLedgerRepo(pool),
		pool:            pool,
	}, nil
}

// app carries the process edges so tests can swap them.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	clock  types.Clock
	open   func(ctx context.Context, cfg config.DatabaseConfig) (store, error)
	lookup func() (cliConfig, error)
}

func loadCLIConfig() (cliConfig, error) {
	// Does not override variables already present in the environment.
	_ = godotenv.Load()

	var cfg cliConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cliConfig{}, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}

func newApp() *app {
	return &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		clock:  types.RealClock{},
		open:   openPostgres,
		lookup: loadCLIConfig,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	cmd := newRootCmd(a)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
