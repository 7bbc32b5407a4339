package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/bistro/pkg/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat assistant HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := initLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if cfg.Admin.JWTSecret == "" {
				logger.Warn("admin.jwt_secret is empty, admin endpoints are disabled")
			}

			srv := server.New(ctx, cfg, server.Deps{
				Chat:     a.chat,
				Usage:    a.ledger,
				Issuer:   a.issuer,
				Metrics:  a.metrics,
				Gatherer: a.registry,
				Logger:   logger,
			})

			logger.Info("starting bistro", zap.String("config", configPath), zap.String("version", version))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	return cmd
}
