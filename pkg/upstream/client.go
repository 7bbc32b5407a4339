// Package upstream calls an OpenAI-compatible chat-completion API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/pario-ai/bistro/pkg/config"
	"github.com/pario-ai/bistro/pkg/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const completionsPath = "/v1/chat/completions"

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("upstream: no api key configured")
	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("upstream: unexpected status")
	// ErrEmptyResponse is returned when the API answers without choices.
	ErrEmptyResponse = errors.New("upstream: empty completion")
	// ErrCircuitOpen is returned without contacting the API while the breaker is open.
	ErrCircuitOpen = errors.New("upstream: circuit open")
)

// Completion is a generated answer with its token usage.
type Completion struct {
	Text  string
	Model string
	Usage models.Usage
}

// Client sends chat completions with a timeout and a circuit breaker.
// It never retries; callers degrade to canned answers instead.
type Client struct {
	cfg     config.ProviderConfig
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates a Client for the given provider.
func New(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	logger = logger.With(zap.String("component", "upstream"), zap.String("provider", cfg.Name))

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "upstream-" + cfg.Name,
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A guest leaving the page cancels the call; the provider did nothing wrong.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{cfg: cfg, http: rc, breaker: breaker, logger: logger}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// BreakerState returns "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Complete sends messages and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage) (*Completion, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, messages)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return res.(*Completion), nil
}

func (c *Client) do(ctx context.Context, messages []models.ChatMessage) (*Completion, error) {
	req := models.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	if c.cfg.MaxTokens > 0 {
		maxTokens := c.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}
	if c.cfg.Temperature > 0 {
		temp := c.cfg.Temperature
		req.Temperature = &temp
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(completionsPath)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode(), truncate(resp.String(), 256))
	}

	var chatResp models.ChatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &chatResp); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	out := &Completion{
		Text:  strings.TrimSpace(chatResp.Choices[0].Message.Content),
		Model: chatResp.Model,
	}
	if out.Model == "" {
		out.Model = c.cfg.Model
	}
	if chatResp.Usage != nil {
		out.Usage = *chatResp.Usage
	}

	c.logger.Debug("completion received",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
