// Package main is the entry point for the StockBrief API server.
//
// It loads configuration, connects to Postgres, builds the external provider
// clients, and mounts the handlers on the core chassis (middleware, routing,
// health checks).
//
// In local mode (APP_ENV=local) it runs as a standard HTTP server on the
// configured port. Inside AWS Lambda it bridges API Gateway HTTP API events
// to the same chi router through httpadapter.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/go-chi/chi/v5"

	"stockbrief/internal/api/handlers"
	"stockbrief/internal/auth"
	"stockbrief/internal/billing"
	"stockbrief/internal/config"
	"stockbrief/internal/core"
	"stockbrief/internal/db"
	"stockbrief/internal/external"
	"stockbrief/internal/metrics"
	"stockbrief/internal/queue"
	"stockbrief/internal/quota"
	"stockbrief/internal/report"
	"stockbrief/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	ctx := context.Background()

	// SSM resolution is bypassed when APP_ENV=local, so the provider is only
	// built for deployed environments.
	var secrets config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		secrets = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	cfg, err := config.LoadConfig(secrets)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("stockbrief API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if cfg.Server.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	deps := dependencies{
		profiles: db.NewProfileRepo(pool, logger),
		ledger:   db.NewUsageLedgerRepo(pool),
		probes:   []core.HealthProbe{db.NewPoolProbe(pool)},
		closers:  []func(){pool.Close},
	}

	if needsAWS(cfg) {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			pool.Close()
			return err
		}
		if cfg.AWS.LedgerReplayQueueURL != "" {
			deps.sqs = sqs.NewFromConfig(awsCfg)
		}
		if cfg.Observability.MetricsBackend == "cloudwatch" {
			deps.cloudwatch = cloudwatch.NewFromConfig(awsCfg)
		}
	}

	srv, err := buildServer(ctx, cfg, logger, deps)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// profileStore is the plan store used by the quota gate, the webhook and the
// admin routes. db.ProfileRepo implements it.
type profileStore interface {
	quota.ProfileReader
	handlers.SubscriptionWriter
	handlers.PlanWriter
}

// ledgerStore is the usage ledger. db.UsageLedgerRepo implements it.
type ledgerStore interface {
	quota.UsageCounter
	report.LedgerWriter
	handlers.UsageLister
}

// dependencies are the stateful collaborators buildServer wires together.
// sqs and cloudwatch are nil when their features are disabled.
type dependencies struct {
	profiles   profileStore
	ledger     ledgerStore
	probes     []core.HealthProbe
	closers    []func()
	sqs        queue.SQSSender
	cloudwatch metrics.CloudWatchClient

	// resolver overrides the configured identity resolver in tests.
	resolver auth.Resolver
}

// buildServer constructs providers, the quota gate and the report pipeline,
// then registers every route and mounts the middleware chain.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps dependencies) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.HealthProbes = deps.probes
	srv.Closers = deps.closers

	collector, metricsHandler := newCollector(cfg, deps.cloudwatch, logger)
	srv.Metrics = collector
	srv.MetricsHandler = metricsHandler

	resolver := deps.resolver
	if resolver == nil {
		resolver, err = newResolver(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	srv.Authenticator = resolver
	srv.AdminKeys = auth.NewAdminKeyVerifier(cfg.Security.AdminAPIKeyHash)

	search, model, financials := newProviders(cfg, logger)

	gateLoc, err := cfg.Quota.Location()
	if err != nil {
		return nil, err
	}
	gate := quota.NewGate(deps.profiles, deps.ledger, billing.NewStaticPlanRegistry(), types.RealClock{}, gateLoc, logger)

	var replay report.ReplayPublisher
	if deps.sqs != nil && cfg.AWS.LedgerReplayQueueURL != "" {
		replay = queue.NewLedgerPublisher(deps.sqs, cfg.AWS.LedgerReplayQueueURL, types.RealClock{}, logger)
	}

	pipeline := report.NewPipeline(report.Config{
		Gate:    gate,
		Search:  search,
		Model:   model,
		Ledger:  deps.ledger,
		Replay:  replay,
		Metrics: collector,
		Logger:  logger,
	})

	analyzeHandler := handlers.NewAnalyzeHandler(pipeline, srv.Validator, logger)
	proMetricsHandler := handlers.NewProMetricsHandler(gate, financials, logger)
	proxyHandler := handlers.NewFMPProxyHandler(financials, logger)
	webhookHandler := handlers.NewLemonSqueezyWebhookHandler(
		external.NewLemonSqueezyVerifier(),
		deps.profiles,
		cfg.Billing.LemonSqueezyWebhookSecret,
		collector,
		logger,
	)
	adminHandler := handlers.NewAdminHandler(deps.profiles, gate, deps.ledger, srv.Validator, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		func(r chi.Router, s *core.Server) {
			r.Group(func(r chi.Router) {
				r.Use(s.RequireIdentity)
				analyzeHandler.RegisterRoutes(r)
				proMetricsHandler.RegisterRoutes(r)
			})
		},
		func(r chi.Router, s *core.Server) {
			proxyHandler.RegisterRoutes(r)
			webhookHandler.RegisterRoutes(r)
		},
		func(r chi.Router, s *core.Server) {
			r.Group(func(r chi.Router) {
				r.Use(s.RequireAdminKey)
				adminHandler.RegisterRoutes(r)
			})
		},
	)

	srv.MountRoutes()
	return srv, nil
}

// newResolver picks the identity strategy. "remote" asks Supabase about
// every token; "jwt" verifies signatures locally, with the shared secret
// when one is configured and the project JWKS otherwise.
func newResolver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Resolver, error) {
	idCfg := cfg.Identity
	switch idCfg.Mode {
	case "jwt":
		opts := []auth.JWTOption{auth.WithAudience(idCfg.JWTAudience)}
		if !idCfg.JWTSecret.IsEmpty() {
			logger.Info("identity: verifying HS256 tokens locally")
			return auth.NewHMACResolver(idCfg.JWTSecret.Unmask(), opts...), nil
		}
		jwksURL := auth.JWKSURL(idCfg.SupabaseURL)
		logger.Info("identity: verifying tokens against JWKS", "jwks_url", jwksURL)
		resolver, err := auth.NewJWKSResolver(ctx, jwksURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("building JWKS resolver: %w", err)
		}
		return resolver, nil
	default:
		client := external.NewSupabaseAuthClient(
			&http.Client{Timeout: idCfg.Timeout},
			external.SupabaseAuthConfig{
				ProjectURL:     idCfg.SupabaseURL,
				ServiceRoleKey: idCfg.ServiceRoleKey.Unmask(),
			},
			logger,
		)
		return auth.NewRemoteResolver(client, logger), nil
	}
}

// newProviders builds the search, model and financial data clients. A
// provider without a key is replaced by its stub; the config loader only
// allows that in local mode.
func newProviders(cfg *config.Config, logger *slog.Logger) (external.SearchProvider, external.TextGenerator, external.FinancialDataProvider) {
	var search external.SearchProvider
	if cfg.Search.SerpAPIKey.IsEmpty() {
		logger.Warn("SERPAPI_KEY not set, using stub search provider")
		search = external.NewStubSearchProvider(logger)
	} else {
		search = external.NewSerpAPIClient(
			&http.Client{Timeout: cfg.Search.Timeout},
			external.SerpAPIConfig{
				APIKey:   cfg.Search.SerpAPIKey.Unmask(),
				BaseURL:  cfg.Search.BaseURL,
				Language: cfg.Search.Language,
				Country:  cfg.Search.Country,
			},
			logger,
		)
	}

	var model external.TextGenerator
	modelClient := &http.Client{Timeout: cfg.Model.Timeout}
	switch {
	case cfg.Model.APIKey().IsEmpty():
		logger.Warn("model API key not set, using stub text generator", "provider", cfg.Model.Provider)
		model = external.NewStubTextGenerator(logger)
	case cfg.Model.Provider == "openai":
		model = external.NewOpenAIModel(modelClient, external.OpenAIConfig{
			APIKey:  cfg.Model.OpenAIAPIKey.Unmask(),
			Model:   cfg.Model.OpenAIModel,
			BaseURL: cfg.Model.OpenAIBaseURL,
		}, logger)
	default:
		model = external.NewGeminiModel(modelClient, external.GeminiConfig{
			APIKey:  cfg.Model.GeminiAPIKey.Unmask(),
			Model:   cfg.Model.GeminiModel,
			BaseURL: cfg.Model.GeminiBaseURL,
		}, logger)
	}

	var financials external.FinancialDataProvider
	if cfg.Financials.FMPAPIKey.IsEmpty() {
		logger.Warn("FMP_API_KEY not set, using stub financial data")
		financials = external.NewStubFinancialData(logger)
	} else {
		financials = external.NewFMPClient(
			&http.Client{Timeout: cfg.Financials.Timeout},
			external.FMPConfig{
				APIKey:  cfg.Financials.FMPAPIKey.Unmask(),
				BaseURL: cfg.Financials.BaseURL,
			},
			logger,
		)
	}

	return search, model, financials
}

// newCollector selects the metrics backend. Only Prometheus exposes a
// scrape handler.
func newCollector(cfg *config.Config, cw metrics.CloudWatchClient, logger *slog.Logger) (metrics.Collector, http.Handler) {
	switch cfg.Observability.MetricsBackend {
	case "prometheus":
		c := metrics.NewPrometheusCollector(strings.ToLower(cfg.Observability.MetricNamespace))
		return c, c.Handler()
	case "cloudwatch":
		if cw == nil {
			logger.Warn("cloudwatch metrics selected without a client, metrics disabled")
			return metrics.Noop{}, nil
		}
		return metrics.NewCloudWatchCollector(cw, cfg.Observability.MetricNamespace, logger), nil
	default:
		return metrics.Noop{}, nil
	}
}

func needsAWS(cfg *config.Config) bool {
	return cfg.AWS.LedgerReplayQueueURL != "" || cfg.Observability.MetricsBackend == "cloudwatch"
}

// loadAWSConfig resolves credentials from the default chain. EndpointURL
// points every client at LocalStack during development.
func loadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(c.EndpointURL))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda serves API Gateway HTTP API (payload v2) events with the chi
// router. lambda.Start blocks for the lifetime of the execution environment.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	adapter := httpadapter.NewV2(srv.Handler())
	logger.Info("starting Lambda handler")
	lambda.Start(adapter.ProxyWithContext)
	return nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// WriteTimeout must outlast the request timeout so the context deadline
	// fires before the connection is cut.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
