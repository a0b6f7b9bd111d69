package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pressroom/internal/accounts"
	"pressroom/internal/models"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Mock Implementations
// =============================================================================

type mockLinker struct {
	mu     sync.Mutex
	phones map[string]uint // telephone -> user id
	linked map[int64]string
	err    error
}

func newMockLinker() *mockLinker {
	return &mockLinker{
		phones: map[string]uint{"+380501234567": 7},
		linked: map[int64]string{},
	}
}

func (m *mockLinker) LinkTelegram(_ context.Context, telephone string, chatID int64) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if !strings.HasPrefix(telephone, "+") {
		telephone = "+" + telephone
	}
	userID, ok := m.phones[telephone]
	if !ok {
		return nil, accounts.ErrProfileNotFound
	}
	m.linked[chatID] = telephone
	return &models.Profile{UserID: userID, Telephone: &telephone, TelegramID: &chatID}, nil
}

type mockSender struct {
	mu      sync.Mutex
	replies map[int64][]string
}

func newMockSender() *mockSender {
	return &mockSender{replies: map[int64][]string{}}
}

func (m *mockSender) Send(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[chatID] = append(m.replies[chatID], text)
	return nil
}

func (m *mockSender) lastReply(chatID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.replies[chatID]
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

type mockSource struct {
	updates chan tgbotapi.Update
	stopped chan struct{}
	once    sync.Once
}

func (m *mockSource) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updates
}

func (m *mockSource) StopReceivingUpdates() {
	m.once.Do(func() { close(m.stopped) })
}

// =============================================================================
// Helpers
// =============================================================================

func phoneUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: EntityPhoneNumber, Offset: 0, Length: len(text)}},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}}
}

// =============================================================================
// Tests
// =============================================================================

func TestHandle(t *testing.T) {
	tests := []struct {
		name       string
		in         Inbound
		wantReply  string
		wantLinked bool
	}{
		{"known phone", Inbound{ChatID: 1, Text: "+380501234567", EntityType: EntityPhoneNumber}, ReplyLinked, true},
		{"unknown phone", Inbound{ChatID: 2, Text: "+380509999999", EntityType: EntityPhoneNumber}, ReplyInvalidPhone, false},
		{"start", Inbound{ChatID: 3, Text: "/start", EntityType: "bot_command"}, ReplyGuidance, false},
		{"other text", Inbound{ChatID: 4, Text: "hello"}, ReplyGuidance, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linker, sender := newMockLinker(), newMockSender()
			h := NewHandler(linker, sender, nil)

			if err := h.Handle(context.Background(), tt.in); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := sender.lastReply(tt.in.ChatID); got != tt.wantReply {
				t.Errorf("reply = %q, want %q", got, tt.wantReply)
			}
			if _, linked := linker.linked[tt.in.ChatID]; linked != tt.wantLinked {
				t.Errorf("linked = %v, want %v", linked, tt.wantLinked)
			}
		})
	}
}

func TestHandle_StoreError(t *testing.T) {
	linker, sender := newMockLinker(), newMockSender()
	linker.err = errors.New("database is locked")
	h := NewHandler(linker, sender, nil)

	err := h.Handle(context.Background(), Inbound{ChatID: 1, Text: "+380501234567", EntityType: EntityPhoneNumber})
	if err == nil {
		t.Fatal("Handle() should return the store error")
	}
	if got := sender.lastReply(1); got != "" {
		t.Errorf("no reply expected, got %q", got)
	}
}

func TestFromUpdate(t *testing.T) {
	in, ok := FromUpdate(phoneUpdate(10, "+380501234567"))
	if !ok || in.ChatID != 10 || in.EntityType != EntityPhoneNumber {
		t.Errorf("FromUpdate(phone) = %+v, %v", in, ok)
	}

	contact := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 11},
		Contact: &tgbotapi.Contact{PhoneNumber: "380501234567"},
	}}
	in, ok = FromUpdate(contact)
	if !ok || in.Text != "380501234567" || in.EntityType != EntityPhoneNumber {
		t.Errorf("FromUpdate(contact) = %+v, %v", in, ok)
	}

	if _, ok := FromUpdate(tgbotapi.Update{}); ok {
		t.Error("FromUpdate() should skip updates without a message")
	}
}

func TestListener_Run(t *testing.T) {
	linker, sender := newMockLinker(), newMockSender()
	source := &mockSource{updates: make(chan tgbotapi.Update), stopped: make(chan struct{})}
	l := newListener(source, NewHandler(linker, sender, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	source.updates <- textUpdate(5, "/start")
	source.updates <- phoneUpdate(5, "+380501234567")
	source.updates <- tgbotapi.Update{}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	select {
	case <-source.stopped:
	default:
		t.Error("polling should be stopped")
	}

	if got := sender.replies[5]; len(got) != 2 || got[0] != ReplyGuidance || got[1] != ReplyLinked {
		t.Errorf("replies = %v", got)
	}
}

func TestWebhook(t *testing.T) {
	linker, sender := newMockLinker(), newMockSender()
	h := NewHandler(linker, sender, nil)

	router := gin.New()
	router.POST("/telegram/webhook/:secret", h.Webhook(&tgbotapi.BotAPI{}, "s3cret"))

	body := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},` +
		`"text":"+380501234567","entities":[{"type":"phone_number","offset":0,"length":13}]}}`

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/nope", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
		if _, linked := linker.linked[42]; linked {
			t.Error("chat must not be linked")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/s3cret", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("phone number", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/s3cret", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if got := sender.lastReply(42); got != ReplyLinked {
			t.Errorf("reply = %q, want %q", got, ReplyLinked)
		}
	})
}
