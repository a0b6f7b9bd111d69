package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pressroom/internal/accounts"
	"pressroom/internal/articles"
	"pressroom/internal/auth"
	"pressroom/internal/config"
	"pressroom/internal/stats"
	"pressroom/internal/telegram"
	"pressroom/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		challenges, err := a.challengeStore(ctx)
		if err != nil {
			return err
		}
		bot, err := a.telegramClient()
		if err != nil {
			return err
		}

		var sender auth.Sender
		if bot != nil {
			sender = bot
		}
		deps := web.Deps{
			Store:          a.store,
			Registrar:      accounts.NewRegistrar(a.db, a.store, log),
			TwoFactor:      auth.NewTwoFactor(a.store, challenges, sender, log),
			Articles:       articles.NewService(a.db, log),
			Sessions:       auth.NewSessionManager(cfg.Session.HashKey, cfg.Session.BlockKey, cfg.Session.CookieSecure, log),
			Stats:          stats.New(),
			Ping:           a.ping,
			AllowedOrigins: cfg.AllowedOrigins,
			Log:            log,
		}

		var wg sync.WaitGroup
		if bot != nil {
			handler := telegram.NewHandler(a.store, bot, log)
			switch cfg.Telegram.Mode {
			case config.TelegramWebhook:
				secret := cfg.Telegram.WebhookSecret
				if secret == "" {
					if secret, err = auth.GenerateSecret(); err != nil {
						return err
					}
				}
				if err := bot.SetWebhook(cfg.Telegram.WebhookURL + "/telegram/webhook/" + secret); err != nil {
					return err
				}
				deps.Telegram, deps.Bot, deps.WebhookSecret = handler, bot.Bot(), secret
			case config.TelegramPolling:
				if err := bot.RemoveWebhook(); err != nil {
					log.Warn("could not remove telegram webhook", "error", err)
				}
				listener := telegram.NewListener(bot.Bot(), handler, log)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := listener.Run(ctx); err != nil {
						log.Error("telegram listener stopped", "error", err)
					}
				}()
			}
		}

		srv, err := web.New(deps)
		if err != nil {
			return err
		}
		httpServer := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("http server listening", "addr", cfg.ListenAddr, "telegram", cfg.Telegram.Mode)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			stop()
			wg.Wait()
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		wg.Wait()
		return nil
	},
}

func (a *app) ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
