package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "stickerbot",
		Short:         "Telegram bot that turns stickers into a personal sticker pack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional file with environment variables")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Receive updates on the webhook HTTP server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMain(envFile, modeWebhook)
			},
		},
		&cobra.Command{
			Use:   "poll",
			Short: "Receive updates with long polling",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMain(envFile, modePolling)
			},
		},
		newSetWebhookCmd(&envFile),
	)

	return rootCmd
}

func newSetWebhookCmd(envFile *string) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Register WEBHOOK_URL with Telegram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closer, err := bootstrap(*envFile)
			if err != nil {
				return err
			}
			defer closer.Close()

			client, err := newTelegramClient(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var description string
			if remove {
				description, err = client.DeleteWebhook(ctx)
			} else {
				if cfg.WebhookURL == "" {
					return errors.New("WEBHOOK_URL is not set")
				}
				description, err = client.SetWebhook(ctx, cfg.WebhookURL)
			}
			if err != nil {
				return fmt.Errorf("updating webhook: %w", err)
			}

			cmd.Println(description)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the registered webhook instead")

	return cmd
}
