package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	registerPath      = "/auth/telegram/register"
	sessionUpdatePath = "/auth/yandex/session/update"

	apiKeyHeader = "X-Api-Key"

	defaultTimeout = 20 * time.Second
	defaultBackoff = 500 * time.Millisecond
)

// ErrUpstream is wrapped by every failed backend call
var ErrUpstream = errors.New("backend request failed")

// APIError is returned when the backend answered with a non-2xx status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend http %d", e.StatusCode)
	}
	return fmt.Sprintf("backend http %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrUpstream
}

// Options configures the backend client
type Options struct {
	BaseAddress string
	APIKey      string
	// Retries is the number of extra attempts after a network error or 5xx
	Retries int
	Backoff time.Duration
	Timeout time.Duration
}

// Client calls the downstream backend API
type Client struct {
	baseURL string
	apiKey  string
	retries int
	backoff time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new backend client
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseAddress), "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		retries: opts.Retries,
		backoff: opts.Backoff,
		http:    &http.Client{Timeout: opts.Timeout},
		logger:  logger,
	}
}

type registerRequest struct {
	TelegramID int64  `json:"telegramId"`
	Phrase     string `json:"phrase"`
}

type sessionUpdateRequest struct {
	Phrase    string `json:"phrase"`
	SessionID string `json:"sessionId"`
}

// RegisterUser links a Telegram user to its connection phrase
func (c *Client) RegisterUser(ctx context.Context, telegramID int64, phrase string) error {
	return c.post(ctx, registerPath, registerRequest{TelegramID: telegramID, Phrase: phrase})
}

// UpdateSession stores a new session id for the user owning phrase
func (c *Client) UpdateSession(ctx context.Context, phrase, sessionID string) error {
	return c.post(ctx, sessionUpdatePath, sessionUpdateRequest{Phrase: phrase, SessionID: sessionID})
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: base address is not configured", ErrUpstream)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(attempt)
			c.logger.Warn("Retrying backend request",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %w", ErrUpstream, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = c.do(ctx, path, body)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			break
		}
	}

	c.logger.Error("Backend request failed",
		zap.String("path", path),
		zap.Error(lastErr),
	)
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}

// retryable reports whether err is a network failure or a 5xx answer
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return errors.Is(err, ErrUpstream)
}
