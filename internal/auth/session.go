package auth

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	sessionCookieName = "pressroom_session"
	sessionMaxAge     = 14 * 24 * 60 * 60 // 14 days
)

// SessionManager handles secure cookie encoding/decoding
type SessionManager struct {
	sc       *securecookie.SecureCookie
	isSecure bool // Whether to set Secure flag on cookies
}

// SessionData represents the data stored in session cookie
type SessionData struct {
	UserID    uint  `json:"user_id"`
	CreatedAt int64 `json:"created_at"`
}

// NewSessionManager creates a new session manager from hex encoded keys.
// Missing or invalid keys are generated randomly (not recommended for production).
func NewSessionManager(hashKeyHex, blockKeyHex string, isSecure bool, log *slog.Logger) *SessionManager {
	if log == nil {
		log = slog.Default()
	}
	hashKey := decodeOrGenerateKey("session hash key", hashKeyHex, 32, log)
	blockKey := decodeOrGenerateKey("session block key", blockKeyHex, 32, log)

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(sessionMaxAge)

	return &SessionManager{
		sc:       sc,
		isSecure: isSecure,
	}
}

// decodeOrGenerateKey decodes a configured key or generates a random one
func decodeOrGenerateKey(name, keyHex string, length int, log *slog.Logger) []byte {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err == nil && len(key) >= length {
			return key[:length]
		}
		log.Warn("configured key is invalid, generating random key", "key", name)
	}

	// Generate random key (sessions won't persist across restarts)
	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate session key: " + err.Error())
	}
	log.Warn("key not set, using random key (sessions won't persist)", "key", name)
	return key
}

// SetSession creates a signed session cookie
func (sm *SessionManager) SetSession(w http.ResponseWriter, userID uint) error {
	data := SessionData{
		UserID:    userID,
		CreatedAt: time.Now().Unix(),
	}

	encoded, err := sm.sc.Encode(sessionCookieName, data)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		Secure:   sm.isSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// GetSession reads and validates session cookie
func (sm *SessionManager) GetSession(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, err
	}

	var data SessionData
	if err := sm.sc.Decode(sessionCookieName, cookie.Value, &data); err != nil {
		return nil, err
	}

	return &data, nil
}

// ClearSession removes the session cookie
func (sm *SessionManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   sm.isSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
