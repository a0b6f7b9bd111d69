package telegram

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Webhook returns the gin handler for POST /telegram/webhook/:secret.
// Requests with a wrong secret get 404 so the endpoint does not reveal itself.
func (h *Handler) Webhook(bot *tgbotapi.BotAPI, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(secret)) != 1 {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		update, err := bot.HandleUpdate(c.Request)
		if err != nil {
			h.log.Warn("invalid telegram update", "error", err)
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		if in, ok := FromUpdate(*update); ok {
			if err := h.Handle(c.Request.Context(), in); err != nil {
				h.log.Error("failed to handle telegram message", "chat_id", in.ChatID, "error", err)
			}
		}
		// telegram retries anything but 2xx
		c.Status(http.StatusOK)
	}
}
