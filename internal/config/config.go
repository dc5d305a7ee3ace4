// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/atqamz/kogase-engine/internal/platform/page"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the gin API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health server (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty runs the server on in-memory repositories.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTPublicKey is the PEM-encoded public key or a path to one. Empty disables bearer auth.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`

	DefaultPageSize int `mapstructure:"DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `mapstructure:"MAX_PAGE_SIZE"`
	// MaxBatchSize caps the events or metrics accepted by one batch call.
	MaxBatchSize int `mapstructure:"MAX_BATCH_SIZE"`

	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	// Empty disables the Kafka fan-out and the rollup worker's consumer.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the rollup worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// RollupInterval is how often the worker recomputes dirty days (e.g. "1m").
	RollupInterval string `mapstructure:"ROLLUP_INTERVAL"`

	// LokiURL is the Loki base URL ingested events are pushed to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	LokiJob string `mapstructure:"LOKI_JOB"`

	// SeedProjectIDs is a comma-separated list of projects registered at startup when the server
	// runs without DATABASE_URL. Empty accepts any project id.
	SeedProjectIDs string `mapstructure:"SEED_PROJECT_IDS"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "kogase-auth")
	v.SetDefault("JWT_AUDIENCE", "kogase-api")
	v.SetDefault("DEFAULT_PAGE_SIZE", page.DefaultSize)
	v.SetDefault("MAX_PAGE_SIZE", page.MaxSize)
	v.SetDefault("MAX_BATCH_SIZE", 1000)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "kogase-engine")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "kogase-telemetry-events")
	v.SetDefault("KAFKA_GROUP_ID", "kogase-rollup-worker")
	v.SetDefault("ROLLUP_INTERVAL", "1m")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("LOKI_JOB", "kogase")
	v.SetDefault("SEED_PROJECT_IDS", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize <= 0 {
		return nil, errors.New("config: DEFAULT_PAGE_SIZE and MAX_PAGE_SIZE must be positive")
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		return nil, errors.New("config: DEFAULT_PAGE_SIZE must not exceed MAX_PAGE_SIZE")
	}
	if cfg.MaxBatchSize <= 0 {
		return nil, errors.New("config: MAX_BATCH_SIZE must be positive")
	}
	if d, err := time.ParseDuration(cfg.RollupInterval); err != nil || d <= 0 {
		return nil, errors.New("config: ROLLUP_INTERVAL must be a positive duration")
	}

	return &cfg, nil
}

// Pages returns the pagination limits for list operations.
func (c *Config) Pages() page.Config {
	return page.Config{DefaultSize: c.DefaultPageSize, MaxSize: c.MaxPageSize}
}

// Rollup parses RollupInterval. Returns 1m if unset or invalid.
func (c *Config) Rollup() time.Duration {
	d, err := time.ParseDuration(c.RollupInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// AuthEnabled reports whether bearer tokens are verified on the API.
func (c *Config) AuthEnabled() bool {
	return strings.TrimSpace(c.JWTPublicKey) != ""
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the fan-out is enabled (non-empty list) and to create the producer and reader.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

// SeedProjectIDsList returns the project ids to register in memory mode.
func (c *Config) SeedProjectIDsList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.SeedProjectIDs)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
