package telegram

import (
	"errors"
	"time"
)

// Config configures the Bot API client.
type Config struct {
	// BotToken is the bot's API token. Also the HMAC secret source for
	// init-data verification, so it is required whenever Telegram auth is on.
	BotToken string `yaml:"bot_token" mapstructure:"bot_token"`

	// APIBaseURL overrides the Bot API host, mainly for tests.
	APIBaseURL string `yaml:"api_base_url" mapstructure:"api_base_url"`

	// Timeout bounds a single Bot API call.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxAttempts is how many times a failed send is tried in total.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.telegram.org"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("telegram: bot_token is required")
	}
	return nil
}
