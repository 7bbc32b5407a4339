package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pario-ai/bistro/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all bistro configuration.
type Config struct {
	Listen     string          `yaml:"listen"`
	DBPath     string          `yaml:"db_path"`
	Log        LogConfig       `yaml:"log"`
	Provider   ProviderConfig  `yaml:"provider"`
	Cache      CacheConfig     `yaml:"cache"`
	Chat       ChatConfig      `yaml:"chat"`
	History    HistoryConfig   `yaml:"history"`
	Budget     BudgetConfig    `yaml:"budget"`
	Admin      AdminConfig     `yaml:"admin"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Restaurant Restaurant      `yaml:"restaurant"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// ProviderConfig defines the upstream chat-completion API.
// An empty APIKey puts the assistant in demo mode.
type ProviderConfig struct {
	Name             string        `yaml:"name"`
	URL              string        `yaml:"url"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float64       `yaml:"temperature"`
	BreakerThreshold uint32        `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	FallbackMatch bool          `yaml:"fallback_match"`
}

// ChatConfig controls the chat service.
type ChatConfig struct {
	SystemPrompt string  `yaml:"system_prompt"`
	HistoryTurns int     `yaml:"history_turns"`
	PricePerCall float64 `yaml:"price_per_call"`
}

// HistoryConfig selects the conversation history backend.
type HistoryConfig struct {
	Backend     string        `yaml:"backend"` // memory or redis
	RedisAddr   string        `yaml:"redis_addr"`
	RedisDB     int           `yaml:"redis_db"`
	Password    string        `yaml:"redis_password"`
	TTL         time.Duration `yaml:"ttl"`
	MaxMessages int           `yaml:"max_messages"`
}

// BudgetConfig controls the live API spending cap.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// AdminConfig protects the back-office endpoints.
type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// RateLimitConfig limits chat requests per client IP.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Restaurant holds the contact details used in canned answers.
type Restaurant struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

const defaultSystemPrompt = `Jesteś uprzejmym asystentem restauracji. Odpowiadaj krótko, po polsku,
wyłącznie na pytania dotyczące menu, godzin otwarcia, dojazdu, dostawy, rezerwacji,
płatności, programu lojalnościowego, wydarzeń i promocji. Jeśli nie znasz odpowiedzi,
poproś gościa o kontakt telefoniczny.`

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "bistro.db",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Provider: ProviderConfig{
			Name:             "openai",
			URL:              "https://api.openai.com",
			Model:            "gpt-4o-mini",
			Timeout:          15 * time.Second,
			MaxTokens:        300,
			Temperature:      0.7,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:        24 * time.Hour,
			MaxEntries: 100,
		},
		Chat: ChatConfig{
			SystemPrompt: defaultSystemPrompt,
			HistoryTurns: 6,
			PricePerCall: 0.002,
		},
		History: HistoryConfig{
			Backend:     "memory",
			TTL:         2 * time.Hour,
			MaxMessages: 20,
		},
		Admin: AdminConfig{
			TokenTTL: 12 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RPS:   2,
			Burst: 5,
		},
		Restaurant: Restaurant{
			Name:  "Bistro",
			Phone: "+48 123 456 789",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// DemoMode reports whether no API credential is configured.
func (c *Config) DemoMode() bool {
	return strings.TrimSpace(c.Provider.APIKey) == ""
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if !c.DemoMode() && c.Provider.URL == "" {
		errs = append(errs, errors.New("provider.url is required when provider.api_key is set"))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("provider.timeout must be positive"))
	}
	switch c.History.Backend {
	case "memory":
	case "redis":
		if c.History.RedisAddr == "" {
			errs = append(errs, errors.New("history.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("history.backend must be memory or redis, got %q", c.History.Backend))
	}
	for i, p := range c.Budget.Policies {
		if p.Period != models.BudgetDaily && p.Period != models.BudgetMonthly {
			errs = append(errs, fmt.Errorf("budget.policies[%d].period must be daily or monthly, got %q", i, p.Period))
		}
	}
	return errors.Join(errs...)
}
