// Package telegram is a minimal Bot API client used to notify users when a
// secret is shared with them or burned.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sealbox/sealbox/internal/logger"
	"github.com/sealbox/sealbox/internal/resilience"
)

// Notifier delivers a message to a Telegram user.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Client calls the Telegram Bot API with retry.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

// NewClient creates a Bot API client.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.WithComponent("telegram"),
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// SendMessage implements Notifier. Server-side failures are retried with
// backoff; 4xx responses are not, since resending the same request cannot
// succeed.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = c.cfg.MaxAttempts
	retryCfg.RetryIf = func(err error) bool {
		if !resilience.DefaultRetryIf(err) {
			return false
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
			return false
		}
		return true
	}
	retryCfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		c.log.Warn("Telegram send retry", logger.Fields(
			"attempt", attempt,
			"backoff", backoff.String(),
			logger.FieldError, err.Error(),
		))
	}

	return resilience.RetryFunc(ctx, retryCfg, func() error {
		return c.send(ctx, chatID, text)
	})
}

func (c *Client) send(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("telegram: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.cfg.APIBaseURL, c.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return &APIError{Code: resp.StatusCode, Description: "unparseable response"}
	}
	if !apiResp.OK {
		code := apiResp.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: apiResp.Description}
	}
	return nil
}

// APIError is a Bot API level failure.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// LogNotifier is the fallback Notifier when no bot token is configured. It
// records the notification instead of delivering it.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates the logging fallback notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("telegram")}
}

// SendMessage implements Notifier.
func (n *LogNotifier) SendMessage(_ context.Context, chatID, text string) error {
	n.log.Info("Notification suppressed, no bot token configured", logger.Fields(
		"chat_id", chatID,
		"text_len", len(text),
	))
	return nil
}
