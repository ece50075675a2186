// Package config loads and validates the sealbox service configuration
// from config.yml, .env files and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/sealbox/sealbox/internal/auth/initdata"
	"github.com/sealbox/sealbox/internal/auth/token"
	"github.com/sealbox/sealbox/internal/crypto"
	"github.com/sealbox/sealbox/internal/database"
	"github.com/sealbox/sealbox/internal/logger"
	"github.com/sealbox/sealbox/internal/redis"
	"github.com/sealbox/sealbox/internal/server"
	"github.com/sealbox/sealbox/internal/telegram"
)

// ServiceName is the canonical service name used for config resolution,
// logging and telemetry.
const ServiceName = "sealbox"

// AppConfig is the root configuration for the sealbox service.
type AppConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`

	Server        server.Config       `yaml:"server" mapstructure:"server"`
	Database      database.Config     `yaml:"database" mapstructure:"database"`
	Redis         redis.Config        `yaml:"redis" mapstructure:"redis"`
	Auth          AuthConfig          `yaml:"auth" mapstructure:"auth"`
	Telegram      telegram.Config     `yaml:"telegram" mapstructure:"telegram"`
	Secrets       SecretsConfig       `yaml:"secrets" mapstructure:"secrets"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// AuthConfig groups the authentication settings.
type AuthConfig struct {
	// Token configures bearer token issuing and verification.
	Token token.Config `yaml:"token" mapstructure:"token"`

	// InitDataMaxAge is the freshness window for Telegram init-data payloads.
	InitDataMaxAge time.Duration `yaml:"init_data_max_age" mapstructure:"init_data_max_age"`
}

func (c *AuthConfig) ApplyDefaults() {
	c.Token.ApplyDefaults()
	if c.InitDataMaxAge == 0 {
		c.InitDataMaxAge = initdata.DefaultMaxAge
	}
}

func (c *AuthConfig) Validate() error {
	if err := c.Token.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if c.InitDataMaxAge < 0 {
		return fmt.Errorf("auth.init_data_max_age must be non-negative (got: %s)", c.InitDataMaxAge)
	}
	return nil
}

// SecretsConfig configures secret sealing and reveal throttling.
type SecretsConfig struct {
	// SealingKey is the passphrase the AEAD key is derived from.
	SealingKey string `yaml:"sealing_key" mapstructure:"sealing_key"`

	// Algorithm selects the AEAD: "aes-256-gcm" or "chacha20-poly1305".
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"`

	// RevealRatePerMinute caps reveal requests per client per minute.
	RevealRatePerMinute int `yaml:"reveal_rate_per_minute" mapstructure:"reveal_rate_per_minute"`

	// PurgeInterval is how often expired secrets are swept from storage.
	PurgeInterval time.Duration `yaml:"purge_interval" mapstructure:"purge_interval"`
}

func (c *SecretsConfig) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = string(crypto.AlgorithmAESGCM)
	}
	if c.RevealRatePerMinute == 0 {
		c.RevealRatePerMinute = 30
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = 10 * time.Minute
	}
}

func (c *SecretsConfig) Validate() error {
	if c.SealingKey == "" {
		return fmt.Errorf("secrets.sealing_key is required")
	}
	switch crypto.Algorithm(c.Algorithm) {
	case crypto.AlgorithmAESGCM, crypto.AlgorithmChaCha20:
	default:
		return fmt.Errorf("secrets.algorithm must be %q or %q (got: %s)",
			crypto.AlgorithmAESGCM, crypto.AlgorithmChaCha20, c.Algorithm)
	}
	if c.RevealRatePerMinute < 0 {
		return fmt.Errorf("secrets.reveal_rate_per_minute must be non-negative (got: %d)", c.RevealRatePerMinute)
	}
	return nil
}

// ObservabilityConfig configures OTLP trace and metric export.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig configures the OTLP metric exporter.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

func (c *ObservabilityConfig) ApplyDefaults() {
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "localhost:4318"
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 15 * time.Second
	}
}

// Load reads the application configuration, applies defaults and validates it.
func Load(opts ...LoaderOption) (*AppConfig, error) {
	var cfg AppConfig
	if err := LoadInto(ServiceName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in zero-value fields across all sections.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Telegram.ApplyDefaults()
	c.Secrets.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks all sections and returns the first problem found.
func (c *AppConfig) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Telegram.Validate(); err != nil {
		return err
	}
	return c.Secrets.Validate()
}
