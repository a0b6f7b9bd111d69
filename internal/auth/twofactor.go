package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"pressroom/internal/accounts"
	"pressroom/internal/metrics"
	"pressroom/internal/models"
	"pressroom/internal/validation"
)

// ChallengeTTL is how long a delivered code stays valid.
const ChallengeTTL = 300 * time.Second

var (
	ErrChallengeInvalid = errors.New("verification code is invalid or expired")
	ErrDeliveryFailed   = errors.New("verification code could not be delivered")
)

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Users is the part of the identity store the login flow needs.
type Users interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

// LoginResult tells whether the login is complete or waits for a code.
type LoginResult struct {
	User       *models.User
	Challenged bool
}

// TwoFactor runs password logins and, for profiles with a linked chat, the
// code challenge that has to be answered before a session may be established.
type TwoFactor struct {
	users    Users
	store    ChallengeStore
	sender   Sender
	log      *slog.Logger
	ttl      time.Duration
	generate func() (int, error)
}

func NewTwoFactor(users Users, store ChallengeStore, sender Sender, log *slog.Logger) *TwoFactor {
	if log == nil {
		log = slog.Default()
	}
	return &TwoFactor{
		users:    users,
		store:    store,
		sender:   sender,
		log:      log,
		ttl:      ChallengeTTL,
		generate: GenerateCode,
	}
}

// Login checks the credentials. Without a linked chat the login is complete.
// Otherwise a fresh code replaces any pending one and is sent to the chat.
func (tf *TwoFactor) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := tf.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("invalid").Inc()
		}
		return nil, err
	}

	if !user.Profile.TwoFactorEnabled() {
		metrics.Logins.WithLabelValues("success").Inc()
		tf.log.Info("user logged in", "user_id", user.ID, "username", user.Username, "two_factor", false)
		return &LoginResult{User: user}, nil
	}

	code, err := tf.generate()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	if err := tf.store.Put(ctx, user.ID, HashCode(user.ID, code), tf.ttl); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	if err := tf.deliver(ctx, *user.Profile.TelegramID, code); err != nil {
		// an undeliverable code must not stay answerable
		if _, _, takeErr := tf.store.Take(ctx, user.ID); takeErr != nil {
			tf.log.Error("failed to drop undelivered challenge", "user_id", user.ID, "error", takeErr)
		}
		metrics.Challenges.WithLabelValues("undelivered").Inc()
		tf.log.Error("challenge delivery failed", "user_id", user.ID, "error", err)
		return nil, ErrDeliveryFailed
	}

	metrics.Logins.WithLabelValues("challenged").Inc()
	metrics.Challenges.WithLabelValues("issued").Inc()
	tf.log.Info("challenge issued", "user_id", user.ID, "username", user.Username)
	return &LoginResult{User: user, Challenged: true}, nil
}

func (tf *TwoFactor) deliver(ctx context.Context, chatID int64, code int) error {
	if tf.sender == nil {
		return errors.New("no message sender configured")
	}
	text := fmt.Sprintf("Your verification code: %d. It expires in %d minutes.", code, int(tf.ttl.Minutes()))
	return tf.sender.Send(ctx, chatID, text)
}

// Verify answers the user's pending challenge. The challenge is consumed by the
// attempt, so a code can succeed at most once. A malformed code is rejected as
// a validation error without touching the challenge.
func (tf *TwoFactor) Verify(ctx context.Context, userID uint, code string) (*models.User, error) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil || n < CodeMin || n > CodeMax {
		return nil, validation.Field("code", fmt.Sprintf("Enter a number between %d and %d.", CodeMin, CodeMax))
	}

	stored, ok, err := tf.store.Take(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(HashCode(userID, n))) != 1 {
		metrics.Challenges.WithLabelValues("rejected").Inc()
		tf.log.Warn("challenge rejected", "user_id", userID)
		return nil, ErrChallengeInvalid
	}

	user, err := tf.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	metrics.Challenges.WithLabelValues("verified").Inc()
	tf.log.Info("user logged in", "user_id", user.ID, "username", user.Username, "two_factor", true)
	return user, nil
}
