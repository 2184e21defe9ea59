// Package config defines the configuration structure for the stockbrief service.
// Configuration is loaded once at process start (or Lambda cold start) and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"fmt"
	"time"

	"stockbrief/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"stockbrief-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Identity      IdentityConfig
	Search        SearchConfig
	Model         ModelConfig
	Financials    FinancialsConfig
	Billing       BillingConfig
	Quota         QuotaConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// IsLocal reports whether the process runs in local development mode, where
// SSM is skipped and missing provider keys fall back to stub providers.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"3000"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MigrateOnStart  bool          `envconfig:"MIGRATE_ON_START" default:"false"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LedgerReplayQueueURL receives usage entries that could not be written
	// after a successful report. Empty disables replay.
	LedgerReplayQueueURL string `envconfig:"LEDGER_REPLAY_QUEUE_URL" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// IdentityConfig configures bearer token resolution against Supabase Auth.
type IdentityConfig struct {
	SupabaseURL    string        `envconfig:"SUPABASE_URL" validate:"required,url"`
	ServiceRoleKey SecretString  `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	JWTSecret      SecretString  `envconfig:"SUPABASE_JWT_SECRET"`
	JWTAudience    string        `envconfig:"SUPABASE_JWT_AUDIENCE" default:"authenticated"`
	Mode           string        `envconfig:"IDENTITY_MODE" default:"remote" validate:"oneof=remote jwt"`
	Timeout        time.Duration `envconfig:"IDENTITY_TIMEOUT" default:"10s"`
}

// SearchConfig configures the web search provider (SerpAPI).
type SearchConfig struct {
	SerpAPIKey SecretString  `envconfig:"SERPAPI_KEY"`
	BaseURL    string        `envconfig:"SERPAPI_BASE_URL" default:"https://serpapi.com" validate:"url"`
	Language   string        `envconfig:"SEARCH_LANGUAGE" default:"zh-tw"`
	Country    string        `envconfig:"SEARCH_COUNTRY" default:"tw"`
	Timeout    time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
}

// ModelConfig configures the text generation provider.
type ModelConfig struct {
	Provider      string        `envconfig:"MODEL_PROVIDER" default:"gemini" validate:"oneof=gemini openai"`
	GeminiAPIKey  SecretString  `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiBaseURL string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com" validate:"url"`
	OpenAIAPIKey  SecretString  `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" validate:"omitempty,url"`
	Timeout       time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
}

// APIKey returns the key of the selected provider.
func (m ModelConfig) APIKey() SecretString {
	if m.Provider == "openai" {
		return m.OpenAIAPIKey
	}
	return m.GeminiAPIKey
}

// FinancialsConfig configures the Financial Modeling Prep client.
type FinancialsConfig struct {
	FMPAPIKey SecretString  `envconfig:"FMP_API_KEY"`
	BaseURL   string        `envconfig:"FMP_BASE_URL" default:"https://financialmodelingprep.com/api/v3" validate:"url"`
	Timeout   time.Duration `envconfig:"FMP_TIMEOUT" default:"15s"`
}

// BillingConfig holds the Lemon Squeezy webhook signing secret.
type BillingConfig struct {
	LemonSqueezyWebhookSecret SecretString `envconfig:"LEMONSQUEEZY_WEBHOOK_SECRET"`
}

// QuotaConfig controls where the weekly quota window starts.
type QuotaConfig struct {
	// Timezone is an IANA name. "Local" resolves to the process zone, which
	// the loader pins to UTC.
	Timezone string `envconfig:"QUOTA_TIMEZONE" default:"Local"`
}

// Location resolves Timezone.
func (q QuotaConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", q.Timezone, err)
	}
	return loc, nil
}

// SecurityConfig holds admin access and CORS settings.
type SecurityConfig struct {
	// AdminAPIKeyHash is a bcrypt hash of the operator key. Empty disables
	// the admin routes.
	AdminAPIKeyHash    SecretString `envconfig:"ADMIN_API_KEY_HASH"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"StockBrief"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
