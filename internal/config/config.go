package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Messaging MessagingConfig `yaml:"messaging"`
	Storage   StorageConfig   `yaml:"storage"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the optional Redis connection. An empty URL disables
// Redis-backed locking and rate limiting.
type RedisConfig struct {
	URL            string `yaml:"url"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the expiry of per-campaign dispatch locks.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// DispatchConfig holds the dispatch worker settings
type DispatchConfig struct {
	TickSeconds             int `yaml:"tick_seconds"`
	Concurrency             int `yaml:"concurrency"`
	MaxAttempts             int `yaml:"max_attempts"`
	SendTimeoutSeconds      int `yaml:"send_timeout_seconds"`
	ClaimStaleAfterSeconds  int `yaml:"claim_stale_after_seconds"`
	RecoveryIntervalSeconds int `yaml:"recovery_interval_seconds"`
	MetricsPort             int `yaml:"metrics_port"` // worker /metrics listener
}

func (c DispatchConfig) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

func (c DispatchConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c DispatchConfig) ClaimStaleAfter() time.Duration {
	return time.Duration(c.ClaimStaleAfterSeconds) * time.Second
}

func (c DispatchConfig) RecoveryInterval() time.Duration {
	return time.Duration(c.RecoveryIntervalSeconds) * time.Second
}

// RateLimitConfig caps gateway sends across every campaign and process.
// A zero limit disables that window.
type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerSecond int  `yaml:"per_second"`
	PerMinute int  `yaml:"per_minute"`
	PerHour   int  `yaml:"per_hour"`
	PerDay    int  `yaml:"per_day"`
}

// GatewayConfig selects and configures the message sender.
type GatewayConfig struct {
	Type           string `yaml:"type"` // "whatsapp" or "console"
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MessagingConfig holds rendering and normalization settings
type MessagingConfig struct {
	DefaultRegion      string `yaml:"default_region"`
	CurrencySymbol     string `yaml:"currency_symbol"`
	DecimalSeparator   string `yaml:"decimal_separator"`
	ThousandsSeparator string `yaml:"thousands_separator"`
}

// StorageConfig selects where completed campaign reports are archived.
type StorageConfig struct {
	Type       string `yaml:"type"` // "none", "local" or "s3"
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile to use, honoring overrides.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// WebhookConfig authenticates gateway delivery receipts.
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level         string `yaml:"level"`
	DisableRedact bool   `yaml:"disable_redact"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 30
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 120
	}
	if cfg.Dispatch.TickSeconds == 0 {
		cfg.Dispatch.TickSeconds = 60
	}
	if cfg.Dispatch.Concurrency == 0 {
		cfg.Dispatch.Concurrency = 8
	}
	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = 3
	}
	if cfg.Dispatch.SendTimeoutSeconds == 0 {
		cfg.Dispatch.SendTimeoutSeconds = 30
	}
	if cfg.Dispatch.ClaimStaleAfterSeconds == 0 {
		cfg.Dispatch.ClaimStaleAfterSeconds = 300
	}
	if cfg.Dispatch.RecoveryIntervalSeconds == 0 {
		cfg.Dispatch.RecoveryIntervalSeconds = 60
	}
	if cfg.Dispatch.MetricsPort == 0 {
		cfg.Dispatch.MetricsPort = 9090
	}
	if cfg.Gateway.Type == "" {
		cfg.Gateway.Type = "console"
	}
	if cfg.Gateway.TimeoutSeconds == 0 {
		cfg.Gateway.TimeoutSeconds = 20
	}
	if cfg.Messaging.DefaultRegion == "" {
		cfg.Messaging.DefaultRegion = "BR"
	}
	if cfg.Messaging.CurrencySymbol == "" {
		cfg.Messaging.CurrencySymbol = "R$"
	}
	if cfg.Messaging.DecimalSeparator == "" {
		cfg.Messaging.DecimalSeparator = ","
	}
	if cfg.Messaging.ThousandsSeparator == "" {
		cfg.Messaging.ThousandsSeparator = "."
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "none"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads .env, then the YAML file, then applies environment
// overrides. A missing YAML file is not an error; defaults are used.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if baseURL := os.Getenv("GATEWAY_BASE_URL"); baseURL != "" {
		cfg.Gateway.BaseURL = baseURL
	}
	if token := os.Getenv("GATEWAY_TOKEN"); token != "" {
		cfg.Gateway.Token = token
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		cfg.Webhook.Secret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	return cfg, nil
}
