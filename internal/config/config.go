// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMongo    = "mongo"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the public HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :9090). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production"). Selects the zap logger preset.
	Env string `mapstructure:"APP_ENV"`

	// StoreDriver picks the challenge store: postgres, sqlite or mongo.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DatabaseURL is the Postgres DSN; required when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath is the SQLite file (or ":memory:"); used when StoreDriver is sqlite.
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	// MongoURI is the MongoDB connection string; required when StoreDriver is mongo.
	MongoURI string `mapstructure:"MONGO_URI"`
	// MongoDatabase is the MongoDB database holding the challenges collection.
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// StoreTimeout is the ceiling for a single challenge lookup (e.g. "10s").
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`
	// ChallengeCacheTTL is how long a fetched challenge is reused (e.g. "300s").
	ChallengeCacheTTL string `mapstructure:"CHALLENGE_CACHE_TTL"`
	// ChallengeCacheErrorTTL is how long a failed lookup is remembered; "0s" means only for the shared in-flight call.
	ChallengeCacheErrorTTL string `mapstructure:"CHALLENGE_CACHE_ERROR_TTL"`
	// ChallengeTimezone is the IANA zone whose calendar day defines "today" (default UTC).
	ChallengeTimezone string `mapstructure:"CHALLENGE_TIMEZONE"`
	// SupportedLanguages is a comma-separated list of two-letter codes; "en" is always included.
	SupportedLanguages string `mapstructure:"SUPPORTED_LANGUAGES"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty means no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name on all telemetry.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, the HTTP server emits request events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events (default trivia-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
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
	v.SetDefault("APP_ENV", "")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "trivia.db")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "trivia")
	v.SetDefault("STORE_TIMEOUT", "10s")
	v.SetDefault("CHALLENGE_CACHE_TTL", "300s")
	v.SetDefault("CHALLENGE_CACHE_ERROR_TTL", "0s")
	v.SetDefault("CHALLENGE_TIMEZONE", "UTC")
	v.SetDefault("SUPPORTED_LANGUAGES", "en,es,fr,de,it,pt")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "daily-trivia")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "trivia-telemetry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "trivia-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMongo:
	default:
		return nil, errors.New("config: STORE_DRIVER must be one of postgres, sqlite, mongo")
	}
	if cfg.StoreDriver == StoreDriverMongo && cfg.MongoURI == "" {
		return nil, errors.New("config: MONGO_URI must be set when STORE_DRIVER=mongo")
	}

	if _, err := time.LoadLocation(cfg.ChallengeTimezone); err != nil {
		return nil, errors.New("config: CHALLENGE_TIMEZONE must be a valid IANA time zone")
	}

	return &cfg, nil
}

// Location returns the time zone that defines the challenge day. Returns UTC if unset or invalid.
func (c *Config) Location() *time.Location {
	if c == nil || c.ChallengeTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ChallengeTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StoreTimeoutDuration parses StoreTimeout. Returns 10s if unset or invalid.
func (c *Config) StoreTimeoutDuration() time.Duration {
	return positiveDuration(c.StoreTimeout, 10*time.Second)
}

// CacheTTL parses ChallengeCacheTTL. Returns 300s if unset or invalid.
func (c *Config) CacheTTL() time.Duration {
	return positiveDuration(c.ChallengeCacheTTL, 300*time.Second)
}

// CacheErrorTTL parses ChallengeCacheErrorTTL. Returns 0 if unset, invalid or negative.
func (c *Config) CacheErrorTTL() time.Duration {
	d, err := time.ParseDuration(c.ChallengeCacheErrorTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// SupportedLanguagesList returns the configured language codes, lowercased, deduplicated, with "en" first.
func (c *Config) SupportedLanguagesList() []string {
	out := []string{"en"}
	if c == nil {
		return out
	}
	seen := map[string]bool{"en": true}
	for _, p := range splitList(c.SupportedLanguages) {
		p = strings.ToLower(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

func positiveDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
