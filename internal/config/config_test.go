package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sealbox/sealbox/internal/auth/token"
	"github.com/sealbox/sealbox/internal/database"
	"github.com/sealbox/sealbox/internal/telegram"
)

// validConfig returns a config that passes Validate after ApplyDefaults.
func validConfig() AppConfig {
	return AppConfig{
		Database: database.Config{Driver: "sqlite", DSN: ":memory:"},
		Auth:     AuthConfig{Token: token.Config{Secret: "test-token-secret"}},
		Telegram: telegram.Config{BotToken: "test-bot-token"},
		Secrets:  SecretsConfig{SealingKey: "test-sealing-key"},
	}
}

func TestAppConfigApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Name != ServiceName {
		t.Errorf("expected name %q, got %q", ServiceName, cfg.Name)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected environment 'development', got %q", cfg.Environment)
	}
	if !cfg.Debug {
		t.Error("expected debug=true for development")
	}
	if cfg.Logging.ServiceName != ServiceName {
		t.Errorf("expected logging service name %q, got %q", ServiceName, cfg.Logging.ServiceName)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.InitDataMaxAge != 24*time.Hour {
		t.Errorf("expected 24h init data max age, got %s", cfg.Auth.InitDataMaxAge)
	}
	if cfg.Secrets.Algorithm != "aes-256-gcm" {
		t.Errorf("expected default algorithm aes-256-gcm, got %q", cfg.Secrets.Algorithm)
	}
	if cfg.Secrets.RevealRatePerMinute != 30 {
		t.Errorf("expected default reveal rate 30, got %d", cfg.Secrets.RevealRatePerMinute)
	}
	if cfg.Observability.Metrics.Interval != 15*time.Second {
		t.Errorf("expected 15s metric interval, got %s", cfg.Observability.Metrics.Interval)
	}
}

func TestAppConfigApplyDefaultsProductionKeepsDebugOff(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.ApplyDefaults()
	if cfg.Debug {
		t.Error("expected debug=false for production")
	}
}

func TestAppConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{"valid", func(c *AppConfig) {}, ""},
		{"bad environment", func(c *AppConfig) { c.Environment = "qa" }, "environment must be one of"},
		{"missing sealing key", func(c *AppConfig) { c.Secrets.SealingKey = "" }, "secrets.sealing_key is required"},
		{"bad algorithm", func(c *AppConfig) { c.Secrets.Algorithm = "rot13" }, "secrets.algorithm must be"},
		{"missing token secret", func(c *AppConfig) { c.Auth.Token.Secret = "" }, "secret is required"},
		{"missing bot token", func(c *AppConfig) { c.Telegram.BotToken = "" }, "bot_token is required"},
		{"missing dsn", func(c *AppConfig) { c.Database.DSN = "" }, "database.dsn is required"},
		{"negative init data age", func(c *AppConfig) { c.Auth.InitDataMaxAge = -time.Hour }, "init_data_max_age"},
		{"redis enabled without addr", func(c *AppConfig) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
			}
		})
	}
}

func TestLoadIntoWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: sealbox
environment: staging
server:
  port: 9090
secrets:
  sealing_key: from-yaml
  reveal_rate_per_minute: 5
auth:
  init_data_max_age: 1h
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg AppConfig
	if err := LoadInto(ServiceName, &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadInto failed: %v", err)
	}

	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Secrets.SealingKey != "from-yaml" {
		t.Errorf("expected sealing key 'from-yaml', got %q", cfg.Secrets.SealingKey)
	}
	if cfg.Secrets.RevealRatePerMinute != 5 {
		t.Errorf("expected reveal rate 5, got %d", cfg.Secrets.RevealRatePerMinute)
	}
	if cfg.Auth.InitDataMaxAge != time.Hour {
		t.Errorf("expected 1h init data max age, got %s", cfg.Auth.InitDataMaxAge)
	}
}

func TestLoadIntoEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
secrets:
  sealing_key: from-yaml
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("SECRETS_SEALING_KEY", "from-env")

	var cfg AppConfig
	if err := LoadInto(ServiceName, &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadInto failed: %v", err)
	}
	if cfg.Secrets.SealingKey != "from-env" {
		t.Errorf("expected env value 'from-env', got %q", cfg.Secrets.SealingKey)
	}
}

func TestLoadIntoMissingFile(t *testing.T) {
	var cfg AppConfig
	if err := LoadInto(ServiceName, &cfg, WithConfigFile("/nonexistent/config.yml")); err != nil {
		t.Fatalf("expected LoadInto to succeed with missing file, got %v", err)
	}
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }

func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestResolverFindsConfigAndEnv(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/sealbox/config.yml": true,
		"../.env.sealbox":          true,
	}}
	resolver := &Resolver{FileSystem: fs}

	files := resolver.ResolveFiles("sealbox", LoaderConfig{})
	if files.ConfigFile != "./cmd/sealbox/config.yml" {
		t.Errorf("unexpected config file: %q", files.ConfigFile)
	}
	if files.EnvFile != "../.env.sealbox" {
		t.Errorf("unexpected env file: %q", files.EnvFile)
	}
}

func TestResolverExplicitPathsWin(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./config.yml": true,
	}}
	resolver := &Resolver{FileSystem: fs}

	files := resolver.ResolveFiles("sealbox", LoaderConfig{
		ConfigFile: "/etc/sealbox/config.yml",
		EnvFile:    "/etc/sealbox/.env",
	})
	if files.ConfigFile != "/etc/sealbox/config.yml" {
		t.Errorf("explicit config file not kept: %q", files.ConfigFile)
	}
	if files.EnvFile != "/etc/sealbox/.env" {
		t.Errorf("explicit env file not kept: %q", files.EnvFile)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("DATABASE_MAX_OPEN_CONNS")
	want := map[string]bool{
		"database.max_open_conns": true,
		"database.max.open.conns": true,
	}
	for _, v := range variants {
		delete(want, v)
	}
	if len(want) != 0 {
		t.Errorf("missing variants: %v (got %v)", want, variants)
	}
}
