package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

const (
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"

	defaultHTTPAddr          = "0.0.0.0:8000"
	defaultMetricsAddr       = "0.0.0.0:0"
	defaultSemanticModelPath = "semantic/models/sas.mdl.yaml"
	defaultAnthropicModel    = "claude-sonnet-4-5"
	defaultCORSOrigins       = "http://localhost:5173,http://127.0.0.1:5173"
)

// Config is the full server configuration. Flags are overridden by
// environment variables when those are set.
type Config struct {
	Verbose         bool
	HTTPAddr        string
	MetricsAddr     string
	ShutdownTimeout time.Duration

	SemanticModelPath string
	VerifyCatalog     bool
	DBBackend         string
	QueryTimeout      time.Duration
	MaxRows           int

	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicMaxTokens int64
	LLMTimeout         time.Duration

	HistoryTurns int
	CORSOrigins  []string
	RateLimit    float64
	RateBurst    int

	SentryDSN         string
	SentryEnvironment string

	Postgres   PgConfig
	ClickHouse ClickHouseConfig
}

// Load parses args into a Config. The returned error is suitable for
// printing to the user.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose (debug) logging")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", defaultHTTPAddr, "address to serve the API on (or set HTTP_ADDR env var)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", defaultMetricsAddr, "address to serve prometheus metrics on, empty to disable (or set METRICS_ADDR env var)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "maximum time to wait for in-flight requests on shutdown")

	fs.StringVar(&cfg.SemanticModelPath, "semantic-model", defaultSemanticModelPath, "path to the semantic model YAML (or set SEMANTIC_MODEL_PATH env var)")
	fs.BoolVar(&cfg.VerifyCatalog, "verify-catalog", false, "check the semantic model against the database catalog at startup")
	fs.StringVar(&cfg.DBBackend, "db-backend", BackendPostgres, "analytics database backend: postgres or clickhouse (or set DB_BACKEND env var)")
	fs.DurationVar(&cfg.QueryTimeout, "query-timeout", 30*time.Second, "timeout for a single analytics query")
	fs.IntVar(&cfg.MaxRows, "max-rows", 5000, "maximum rows returned by a query")

	fs.StringVar(&cfg.AnthropicModel, "anthropic-model", defaultAnthropicModel, "Anthropic model (or set ANTHROPIC_MODEL env var)")
	fs.Int64Var(&cfg.AnthropicMaxTokens, "anthropic-max-tokens", 1024, "max tokens per Anthropic response")
	fs.DurationVar(&cfg.LLMTimeout, "llm-timeout", 60*time.Second, "timeout for a single Anthropic call")

	fs.IntVar(&cfg.HistoryTurns, "history-turns", 5, "number of prior turns given to intent extraction")
	corsOrigins := fs.String("cors-origins", defaultCORSOrigins, "comma separated allowed CORS origins (or set CORS_ORIGINS env var)")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", 2, "chat requests per second allowed per client IP, 0 to disable")
	fs.IntVar(&cfg.RateBurst, "rate-burst", 10, "burst size for the per-IP rate limiter")

	fs.StringVar(&cfg.Postgres.Host, "postgres-host", "localhost", "PostgreSQL host (or set POSTGRES_HOST env var)")
	fs.StringVar(&cfg.Postgres.Port, "postgres-port", "5432", "PostgreSQL port (or set POSTGRES_PORT env var)")
	fs.StringVar(&cfg.Postgres.Database, "postgres-db", "", "PostgreSQL database (or set POSTGRES_DB env var)")
	fs.StringVar(&cfg.Postgres.Username, "postgres-user", "", "PostgreSQL user (or set POSTGRES_USER env var)")
	fs.StringVar(&cfg.Postgres.SSLMode, "postgres-sslmode", "disable", "PostgreSQL sslmode (or set POSTGRES_SSLMODE env var)")
	fs.BoolVar(&cfg.Postgres.RunMigrations, "postgres-migrate", false, "apply chat history migrations at startup (or set POSTGRES_RUN_MIGRATIONS=true)")

	fs.StringVar(&cfg.ClickHouse.Addr, "clickhouse-addr", "", "ClickHouse address host:port (or set CLICKHOUSE_ADDR_TCP env var)")
	fs.StringVar(&cfg.ClickHouse.Database, "clickhouse-database", DefaultClickHouseDatabase, "ClickHouse database (or set CLICKHOUSE_DATABASE env var)")
	fs.StringVar(&cfg.ClickHouse.Username, "clickhouse-username", "default", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	fs.BoolVar(&cfg.ClickHouse.Secure, "clickhouse-secure", false, "enable TLS for ClickHouse (or set CLICKHOUSE_SECURE=true)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Secrets come from the environment only.
	cfg.Postgres.Password = os.Getenv("POSTGRES_PASSWORD")
	cfg.ClickHouse.Password = os.Getenv("CLICKHOUSE_PASSWORD")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.SentryDSN = os.Getenv("SENTRY_DSN")
	cfg.SentryEnvironment = os.Getenv("SENTRY_ENVIRONMENT")

	envString(&cfg.HTTPAddr, "HTTP_ADDR")
	envString(&cfg.MetricsAddr, "METRICS_ADDR")
	envString(&cfg.SemanticModelPath, "SEMANTIC_MODEL_PATH")
	envString(&cfg.DBBackend, "DB_BACKEND")
	envString(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	envString(corsOrigins, "CORS_ORIGINS")
	envString(&cfg.Postgres.Host, "POSTGRES_HOST")
	envString(&cfg.Postgres.Port, "POSTGRES_PORT")
	envString(&cfg.Postgres.Database, "POSTGRES_DB")
	envString(&cfg.Postgres.Username, "POSTGRES_USER")
	envString(&cfg.Postgres.SSLMode, "POSTGRES_SSLMODE")
	envString(&cfg.ClickHouse.Addr, "CLICKHOUSE_ADDR_TCP")
	envString(&cfg.ClickHouse.Database, "CLICKHOUSE_DATABASE")
	envString(&cfg.ClickHouse.Username, "CLICKHOUSE_USERNAME")
	if os.Getenv("POSTGRES_RUN_MIGRATIONS") == "true" {
		cfg.Postgres.RunMigrations = true
	}
	if os.Getenv("CLICKHOUSE_SECURE") == "true" {
		cfg.ClickHouse.Secure = true
	}
	if v := os.Getenv("HISTORY_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_TURNS: %w", err)
		}
		cfg.HistoryTurns = n
	}

	for _, o := range strings.Split(*corsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	switch cfg.DBBackend {
	case BackendPostgres, BackendClickHouse:
	default:
		return fmt.Errorf("unknown db backend %q (want %s or %s)", cfg.DBBackend, BackendPostgres, BackendClickHouse)
	}
	if cfg.SemanticModelPath == "" {
		return fmt.Errorf("semantic model path is required")
	}
	if cfg.AnthropicModel == "" {
		return fmt.Errorf("anthropic model is required")
	}
	if cfg.HistoryTurns < 0 {
		return fmt.Errorf("history turns must not be negative")
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
