package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"pressroom/internal/accounts"
	"pressroom/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	EntityPhoneNumber = "phone_number"

	ReplyLinked       = "Two-factor authentication is enabled for your account."
	ReplyInvalidPhone = "Please enter valid phone number"
	ReplyGuidance     = "Please enter your phone number. Format: +380xxxxxxxxx"
)

// Inbound is a message received by the bot.
type Inbound struct {
	ChatID     int64
	Text       string
	EntityType string // type of the first entity, if any
}

// Linker attaches a chat to the profile owning a phone number.
type Linker interface {
	LinkTelegram(ctx context.Context, telephone string, chatID int64) (*models.Profile, error)
}

// Handler answers inbound bot messages.
type Handler struct {
	linker Linker
	sender Sender
	log    *slog.Logger
}

func NewHandler(linker Linker, sender Sender, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{linker: linker, sender: sender, log: log}
}

// Handle links the chat when the message carries a phone number and replies
// with guidance otherwise.
func (h *Handler) Handle(ctx context.Context, in Inbound) error {
	if in.EntityType != EntityPhoneNumber {
		return h.reply(ctx, in.ChatID, ReplyGuidance)
	}

	profile, err := h.linker.LinkTelegram(ctx, strings.TrimSpace(in.Text), in.ChatID)
	if errors.Is(err, accounts.ErrProfileNotFound) {
		h.log.Info("telegram link rejected", "chat_id", in.ChatID)
		return h.reply(ctx, in.ChatID, ReplyInvalidPhone)
	}
	if err != nil {
		return err
	}

	h.log.Info("telegram chat linked", "chat_id", in.ChatID, "user_id", profile.UserID)
	return h.reply(ctx, in.ChatID, ReplyLinked)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) error {
	if err := h.sender.Send(ctx, chatID, text); err != nil {
		h.log.Error("telegram reply failed", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}

// FromUpdate extracts the inbound message from an update. A shared contact
// counts as a phone number.
func FromUpdate(update tgbotapi.Update) (Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return Inbound{}, false
	}

	in := Inbound{ChatID: msg.Chat.ID, Text: msg.Text}
	switch {
	case msg.Contact != nil:
		in.Text = msg.Contact.PhoneNumber
		in.EntityType = EntityPhoneNumber
	case len(msg.Entities) > 0:
		in.EntityType = msg.Entities[0].Type
	}
	return in, true
}
