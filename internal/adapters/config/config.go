package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"demeter/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Ingress       IngressConfig
	Aggregation   AggregationConfig
	Budget        BudgetConfig
	Workers       WorkerConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"demeter"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port         int           `envconfig:"HTTP_PORT" default:"8080"`
	QueryTimeout time.Duration `envconfig:"HTTP_QUERY_TIMEOUT" default:"10s"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"demeter"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"demeter"`
}

// IngressConfig controls cost event consumption behavior
type IngressConfig struct {
	// MaxRetries bounds retries of transient storage failures before dead-lettering
	MaxRetries   int           `envconfig:"INGRESS_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"INGRESS_RETRY_BACKOFF" default:"1s"`
	// DedupTTL is how long applied event id markers are kept.
	// Must exceed the broker's redelivery window.
	DedupTTL time.Duration `envconfig:"INGRESS_DEDUP_TTL" default:"24h"`
}

// AggregationConfig controls date bucketing and retention
type AggregationConfig struct {
	// ReferenceTimezone is the IANA zone used for calendar-day bucketing
	ReferenceTimezone string `envconfig:"AGGREGATION_TIMEZONE" default:"UTC"`
	// EventRetentionDays is the TTL applied to raw cost events in ClickHouse
	EventRetentionDays int `envconfig:"EVENT_RETENTION_DAYS" default:"90"`
	// AggregateRetentionDays bounds how far back daily aggregates are kept
	AggregateRetentionDays int `envconfig:"AGGREGATE_RETENTION_DAYS" default:"400"`
}

// BudgetConfig holds threshold defaults used before any configuration is stored
type BudgetConfig struct {
	DefaultDailyThresholdUSD   string `envconfig:"BUDGET_DEFAULT_DAILY_USD" default:"50"`
	DefaultMonthlyThresholdUSD string `envconfig:"BUDGET_DEFAULT_MONTHLY_USD" default:"1000"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	RetentionInterval   time.Duration `envconfig:"WORKER_RETENTION_INTERVAL" default:"24h"`
	BudgetWatchInterval time.Duration `envconfig:"WORKER_BUDGET_WATCH_INTERVAL" default:"5m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
