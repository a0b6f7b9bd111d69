package cli

import (
	"context"
	"fmt"
	"log/slog"

	"pressroom/internal/accounts"
	"pressroom/internal/auth"
	"pressroom/internal/config"
	"pressroom/internal/storage"
	"pressroom/internal/telegram"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// app holds the long-lived resources shared by the commands.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *gorm.DB
	redis *redis.Client
	store *accounts.Store
	bot   *telegram.Client
}

// openApp connects to the database, applies migrations and provisions roles.
func openApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	db, err := storage.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db, store: accounts.NewStore(db)}

	if err := storage.Migrate(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := accounts.NewProvisioner(db, log).EnsureRoles(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("provision roles: %w", err)
	}
	return a, nil
}

// challengeStore returns the redis store when configured, the in-memory one otherwise.
func (a *app) challengeStore(ctx context.Context) (auth.ChallengeStore, error) {
	if a.cfg.RedisURL == "" {
		a.log.Info("keeping login challenges in memory")
		return auth.NewMemoryStore(), nil
	}
	client, err := auth.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.log.Info("keeping login challenges in redis")
	return auth.NewRedisStore(client), nil
}

// telegramClient authorizes the bot unless Telegram is switched off.
func (a *app) telegramClient() (*telegram.Client, error) {
	if a.cfg.Telegram.Mode == config.TelegramOff {
		a.log.Warn("telegram is off, users with a linked chat cannot log in")
		return nil, nil
	}
	client, err := telegram.NewClient(a.cfg.Telegram.Token, a.log)
	if err != nil {
		return nil, err
	}
	a.bot = client
	return client, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close redis", "error", err)
		}
	}
	if err := storage.Close(a.db); err != nil {
		a.log.Warn("failed to close database", "error", err)
	}
}
