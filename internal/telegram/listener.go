package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeout = 60 // seconds

// updateSource is the long polling part of tgbotapi.BotAPI.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Listener feeds long-polled updates to a Handler.
type Listener struct {
	source  updateSource
	handler *Handler
	log     *slog.Logger
}

func NewListener(bot *tgbotapi.BotAPI, handler *Handler, log *slog.Logger) *Listener {
	return newListener(bot, handler, log)
}

func newListener(source updateSource, handler *Handler, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{source: source, handler: handler, log: log}
}

// Run polls until ctx is cancelled. Handler errors are logged and polling goes on.
func (l *Listener) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	cfg.AllowedUpdates = []string{tgbotapi.UpdateTypeMessage}

	updates := l.source.GetUpdatesChan(cfg)
	l.log.Info("telegram listener started")

	for {
		select {
		case <-ctx.Done():
			l.source.StopReceivingUpdates()
			l.log.Info("telegram listener stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			in, ok := FromUpdate(update)
			if !ok {
				continue
			}
			if err := l.handler.Handle(ctx, in); err != nil {
				l.log.Error("failed to handle telegram message", "chat_id", in.ChatID, "error", err)
			}
		}
	}
}
