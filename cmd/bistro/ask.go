package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/bistro/pkg/chat"
)

func newAskCmd() *cobra.Command {
	var (
		configPath     string
		conversationID string
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question through the full pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := zap.NewNop()
			if verbose {
				logger = initLogger(cfg.Log)
			}

			ctx := context.Background()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			reply, err := a.chat.Respond(ctx, chat.Request{
				Prompt:         strings.Join(args, " "),
				ConversationID: conversationID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Text)
			if verbose {
				fmt.Fprintf(out, "\nsource=%s cached=%t topic=%s\n", reply.Source, reply.WasCached, reply.Topic)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id for history")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline decisions and print the answer source")
	return cmd
}
