package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pario-ai/bistro/pkg/auth"
	"github.com/pario-ai/bistro/pkg/budget"
	"github.com/pario-ai/bistro/pkg/cache"
	"github.com/pario-ai/bistro/pkg/chat"
	"github.com/pario-ai/bistro/pkg/config"
	"github.com/pario-ai/bistro/pkg/cost"
	"github.com/pario-ai/bistro/pkg/fallback"
	"github.com/pario-ai/bistro/pkg/history"
	"github.com/pario-ai/bistro/pkg/ledger"
	"github.com/pario-ai/bistro/pkg/metrics"
	"github.com/pario-ai/bistro/pkg/upstream"
)

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// app is the fully wired assistant shared by serve and ask.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	chat     *chat.Service
	ledger   *ledger.SQLiteLedger
	issuer   *auth.Issuer
	metrics  *metrics.Collector
	registry *prometheus.Registry
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		issuer:   auth.NewIssuer(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewCollector(a.registry)

	l, err := ledger.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	a.ledger = l
	a.closers = append(a.closers, l.Close)

	store, err := a.historyStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	fb := fallback.Default(cfg.Restaurant.Phone)
	deps := chat.Deps{
		Cache: cache.New(cache.Options{
			TTL:           cfg.Cache.TTL,
			MaxEntries:    cfg.Cache.MaxEntries,
			FallbackMatch: cfg.Cache.FallbackMatch,
		}, fb),
		Fallback: fb,
		History:  store,
		Cost:     cost.NewTracker(cfg.Chat.PricePerCall),
		Ledger:   l,
		Metrics:  a.metrics,
		Logger:   logger,
	}
	if !cfg.DemoMode() {
		deps.Upstream = upstream.New(cfg.Provider, logger)
	}
	if cfg.Budget.Enabled && len(cfg.Budget.Policies) > 0 {
		deps.Budget = budget.New(cfg.Budget.Policies, l)
	}

	a.chat = chat.New(chat.Options{
		SystemPrompt: cfg.Chat.SystemPrompt,
		HistoryTurns: cfg.Chat.HistoryTurns,
	}, deps)

	mode := chat.ModeLive
	if cfg.DemoMode() {
		mode = chat.ModeDemo
	}
	logger.Info("assistant ready",
		zap.String("mode", mode),
		zap.String("history", cfg.History.Backend),
		zap.Bool("budget", deps.Budget != nil))
	return a, nil
}

func (a *app) historyStore(ctx context.Context) (history.Store, error) {
	if a.cfg.History.Backend != "redis" {
		return history.NewMemoryStore(a.cfg.History.MaxMessages), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.History.RedisAddr,
		Password: a.cfg.History.Password,
		DB:       a.cfg.History.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", a.cfg.History.RedisAddr, err)
	}
	a.closers = append(a.closers, rdb.Close)
	return history.NewRedisStore(rdb, a.cfg.History.TTL, a.cfg.History.MaxMessages), nil
}

// Close releases the ledger and the redis client.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
