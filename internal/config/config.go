// Package config loads service and client configuration from the
// environment, an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"checkout/internal/validation"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the payment server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Mongo    MongoConfig    `yaml:"mongo"`
	NewRelic NewRelicConfig `yaml:"new_relic"`
	Payment  PaymentConfig  `yaml:"payment"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"10s"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
	DBName   string `yaml:"name" env:"DB_NAME" env-default:"checkout"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`

	MaxOpenConns int `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"50"`
	MaxIdleConns int `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"25"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"true"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`

	PoolSize     int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"20"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"2s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"REDIS_READ_TIMEOUT" env-default:"500ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT" env-default:"500ms"`
}

// MongoConfig holds the optional API log sink configuration.
type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://127.0.0.1:27017"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"checkout"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `yaml:"app_name" env:"NEW_RELIC_APP_NAME" env-default:"checkout-service"`
	LicenseKey string `yaml:"license_key" env:"NEW_RELIC_LICENSE_KEY" env-default:""`
	Enabled    bool   `yaml:"enabled" env:"NEW_RELIC_ENABLED" env-default:"false"`
}

// PaymentConfig holds the simulated issuer policy.
type PaymentConfig struct {
	ChallengeCode     string        `yaml:"challenge_code" env:"PAYMENT_CHALLENGE_CODE" env-default:"111111"`
	ChallengeTTL      time.Duration `yaml:"challenge_ttl" env:"PAYMENT_CHALLENGE_TTL" env-default:"5m"`
	MaxAttempts       int           `yaml:"max_attempts" env:"PAYMENT_MAX_ATTEMPTS" env-default:"3"`
	DefaultCommission string        `yaml:"default_commission" env:"PAYMENT_DEFAULT_COMMISSION" env-default:"1.99"`
	LockTTL           time.Duration `yaml:"lock_ttl" env:"PAYMENT_LOCK_TTL" env-default:"10s"`
	PendingTTL        time.Duration `yaml:"pending_ttl" env:"PAYMENT_PENDING_TTL" env-default:"30m"`
	ReaperInterval    time.Duration `yaml:"reaper_interval" env:"PAYMENT_REAPER_INTERVAL" env-default:"1m"`
	LogBuffer         int           `yaml:"log_buffer" env:"API_LOG_BUFFER" env-default:"256"`
}

// OutboxConfig controls the outbox event processor.
type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"5s"`
	BatchSize    int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"100"`
	MaxRetries   int           `yaml:"max_retries" env:"OUTBOX_MAX_RETRIES" env-default:"3"`
}

// WebhookConfig holds the merchant webhook endpoint. Deliveries are only
// created when URL is set.
type WebhookConfig struct {
	URL          string        `yaml:"url" env:"WEBHOOK_URL" env-default:""`
	Secret       string        `yaml:"secret" env:"WEBHOOK_SECRET" env-default:"default-secret"`
	Timeout      time.Duration `yaml:"timeout" env:"WEBHOOK_TIMEOUT" env-default:"10s"`
	PollInterval time.Duration `yaml:"poll_interval" env:"WEBHOOK_POLL_INTERVAL" env-default:"10s"`
	MaxRetries   int           `yaml:"max_retries" env:"WEBHOOK_MAX_RETRIES" env-default:"5"`
}

// DefaultCommissionRate parses DefaultCommission.
func (c PaymentConfig) DefaultCommissionRate() (decimal.Decimal, error) {
	return decimal.NewFromString(c.DefaultCommission)
}

// ClientConfig holds configuration for the protocol client.
type ClientConfig struct {
	BaseURL       string        `yaml:"base_url" env:"CHECKOUT_BASE_URL" env-default:"http://localhost:8080"`
	Timeout       time.Duration `yaml:"timeout" env:"CHECKOUT_TIMEOUT" env-default:"10s"`
	RedirectDelay time.Duration `yaml:"redirect_delay" env:"CHECKOUT_REDIRECT_DELAY" env-default:"5s"`
}

// Load loads server configuration.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := read(cfg); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver != StoragePostgres && cfg.Storage.Driver != StorageMemory {
		return nil, fmt.Errorf("load config: unknown storage driver %q", cfg.Storage.Driver)
	}
	if _, err := cfg.Payment.DefaultCommissionRate(); err != nil {
		return nil, fmt.Errorf("load config: default commission: %w", err)
	}
	if cfg.Payment.MaxAttempts < 1 {
		return nil, errors.New("load config: max attempts must be at least 1")
	}
	if !validation.IsValidChallengeCode(cfg.Payment.ChallengeCode) {
		return nil, errors.New("load config: challenge code must be 6 digits")
	}
	if cfg.Outbox.MaxRetries < 1 || cfg.Webhook.MaxRetries < 1 {
		return nil, errors.New("load config: outbox and webhook retries must be at least 1")
	}

	return cfg, nil
}

// LoadClient loads protocol client configuration.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := read(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// read applies .env, then the YAML file named by CONFIG_PATH if set, then
// the environment. Environment variables take precedence.
func read(cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(cfg, nil)
		return fmt.Errorf("load config: %w; %s", err, desc)
	}
	return nil
}
