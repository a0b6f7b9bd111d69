// Package telegram connects the site to its Telegram bot: it delivers login codes
// and links chats to profiles when users send their phone number.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Client wraps the bot API.
type Client struct {
	bot *tgbotapi.BotAPI
	log *slog.Logger
}

// NewClient authorizes the bot token against the API.
func NewClient(token string, log *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is not configured")
	}
	if log == nil {
		log = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	log.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &Client{bot: bot, log: log}, nil
}

// Bot exposes the underlying API for the listener and the webhook.
func (c *Client) Bot() *tgbotapi.BotAPI {
	return c.bot
}

func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// SetWebhook points the bot at url. Long polling stops working until the
// webhook is removed.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	c.log.Info("telegram webhook registered")
	return nil
}

// RemoveWebhook switches the bot back to long polling.
func (c *Client) RemoveWebhook() error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
