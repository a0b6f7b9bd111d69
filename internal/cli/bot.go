package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"pressroom/internal/config"
	"pressroom/internal/telegram"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run only the Telegram listener (long polling)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Telegram.Token == "" {
			return config.ConfigError{Field: "TELEGRAM_BOT_TOKEN", Reason: "is required to run the bot"}
		}
		if cfg.Telegram.Mode == config.TelegramWebhook {
			return errors.New("bot runs with long polling; the webhook is served by serve")
		}
		cfg.Telegram.Mode = config.TelegramPolling

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		bot, err := a.telegramClient()
		if err != nil {
			return err
		}
		if err := bot.RemoveWebhook(); err != nil {
			log.Warn("could not remove telegram webhook", "error", err)
		}

		handler := telegram.NewHandler(a.store, bot, log)
		return telegram.NewListener(bot.Bot(), handler, log).Run(ctx)
	},
}
