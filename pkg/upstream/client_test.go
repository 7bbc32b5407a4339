package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/bistro/pkg/config"
	"github.com/pario-ai/bistro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func providerFor(url string) config.ProviderConfig {
	return config.ProviderConfig{
		Name:             "test",
		URL:              url,
		APIKey:           "sk-test",
		Model:            "gpt-test",
		Timeout:          2 * time.Second,
		MaxTokens:        100,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
	}
}

func TestComplete(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req models.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, models.RoleSystem, req.Messages[0].Role)
		}
		if assert.NotNil(t, req.MaxTokens) {
			assert.Equal(t, 100, *req.MaxTokens)
		}

		json.NewEncoder(w).Encode(models.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-test",
			Choices: []models.Choice{
				{Message: models.ChatMessage{Role: models.RoleAssistant, Content: "  Zapraszamy!  "}, FinishReason: "stop"},
			},
			Usage: &models.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		})
	}))
	defer upstream.Close()

	c := New(providerFor(upstream.URL), zap.NewNop())
	out, err := c.Complete(context.Background(), []models.ChatMessage{
		{Role: models.RoleSystem, Content: "preamble"},
		{Role: models.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Zapraszamy!", out.Text)
	assert.Equal(t, 15, out.Usage.TotalTokens)
	assert.Equal(t, "closed", c.BreakerState())
}

func TestCompleteNotConfigured(t *testing.T) {
	cfg := providerFor("http://127.0.0.1:1")
	cfg.APIKey = ""
	c := New(cfg, zap.NewNop())

	assert.False(t, c.Configured())
	_, err := c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCompleteErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer upstream.Close()

	c := New(providerFor(upstream.URL), zap.NewNop())
	_, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrStatus)
}

func TestCompleteEmptyChoices(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer upstream.Close()

	c := New(providerFor(upstream.URL), zap.NewNop())
	_, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestCompleteTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	cfg := providerFor(upstream.URL)
	cfg.Timeout = 50 * time.Millisecond
	c := New(cfg, zap.NewNop())

	start := time.Now()
	_, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	c := New(providerFor(upstream.URL), zap.NewNop())
	msgs := []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}

	for range 2 {
		_, err := c.Complete(context.Background(), msgs)
		assert.ErrorIs(t, err, ErrStatus)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.Complete(context.Background(), msgs)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the API")
}

func TestCanceledCallsDoNotOpenBreaker(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"Zapraszamy"}}]}`))
	}))
	defer upstream.Close()

	c := New(providerFor(upstream.URL), zap.NewNop())
	msgs := []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	for range 3 {
		_, err := c.Complete(canceled, msgs)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", c.BreakerState())

	out, err := c.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "Zapraszamy", out.Text)
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := "błąd"
	// "ł" spans bytes 1-2; cutting at 2 must not leave half of it.
	assert.Equal(t, "b", truncate(s, 2))
	assert.Equal(t, "bł", truncate(s, 3))
	assert.Equal(t, s, truncate(s, 100))

	long := strings.Repeat("ą", 200)
	got := truncate(long, 255)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, 254)
}
