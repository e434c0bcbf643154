// Package notify delivers lead notifications through the Telegram Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/goleads/internal/logger"
)

const (
	// DefaultBaseURL is the Telegram Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"
	// DefaultTimeout bounds a single send.
	DefaultTimeout = 15 * time.Second

	maxErrorBodyBytes = 4 * 1024
)

// ErrNotConfigured is returned by Send when the bot token or chat id is
// missing. Leads are still persisted; only delivery is skipped.
var ErrNotConfigured = errors.New("telegram notifier is not configured")

// Config holds Telegram notifier configuration.
type Config struct {
	// BotToken authorizes the bot. Required for sends to succeed.
	BotToken string
	// ChatID is the destination chat or channel. Required.
	ChatID string
	// BaseURL overrides DefaultBaseURL. Used by tests.
	BaseURL string
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// Telegram sends messages to a fixed chat through the Bot API.
type Telegram struct {
	cfg    Config
	client *http.Client
	logger logger.Logger
}

// NewTelegram creates a new Telegram notifier.
func NewTelegram(cfg Config, log logger.Logger) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

// sendMessageRequest is the Bot API sendMessage payload.
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// sendMessageResponse is the subset of the Bot API response we read.
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers message to the configured chat. Failures are returned, never
// fatal; the caller decides whether to log and continue.
func (t *Telegram) Send(ctx context.Context, message string) error {
	if t.cfg.BotToken == "" || t.cfg.ChatID == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                t.cfg.ChatID,
		Text:                  message,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp sendMessageResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}

	if !apiResp.OK {
		return fmt.Errorf("telegram rejected message (status %d): %s", resp.StatusCode, apiResp.Description)
	}

	t.logger.Debug("notification delivered")

	return nil
}
