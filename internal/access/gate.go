// Package access gates routes by session, permission and staff status.
package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"pressroom/internal/accounts"
	"pressroom/internal/auth"
	"pressroom/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	userKey = "access.user"

	LoginPath = "/login"
	IndexPath = "/articles"
)

// UserLoader loads a user with roles, permissions and profile.
type UserLoader interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

// Gate resolves the session user and enforces route guards.
type Gate struct {
	sessions *auth.SessionManager
	users    UserLoader
	log      *slog.Logger
}

func NewGate(sessions *auth.SessionManager, users UserLoader, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{sessions: sessions, users: users, log: log}
}

// Authenticate puts the session user, if any, into the context. A session whose
// user no longer exists is cleared.
func (g *Gate) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := g.sessions.GetSession(c.Request)
		if err != nil {
			c.Next()
			return
		}

		user, err := g.users.UserByID(c.Request.Context(), session.UserID)
		switch {
		case errors.Is(err, accounts.ErrUserNotFound):
			g.sessions.ClearSession(c.Writer)
		case err != nil:
			g.log.Error("failed to load session user", "user_id", session.UserID, "error", err)
		default:
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// LoginRequired sends anonymous visitors to the login page.
func (g *Gate) LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			redirectToLogin(c)
			return
		}
		c.Next()
	}
}

// PermissionRequired sends anyone lacking the permission to the login page,
// including authenticated users.
func (g *Gate) PermissionRequired(codename string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if !user.HasPerm(codename) {
			if user != nil {
				g.log.Info("permission denied", "user_id", user.ID, "permission", codename, "path", c.Request.URL.Path)
			}
			redirectToLogin(c)
			return
		}
		c.Next()
	}
}

func (g *Gate) StaffRequired() gin.HandlerFunc {
	return g.require(func(u *models.User) bool { return u.IsStaff || u.IsSuperuser })
}

func (g *Gate) SuperuserRequired() gin.HandlerFunc {
	return g.require(func(u *models.User) bool { return u.IsSuperuser })
}

// require redirects anonymous visitors to login and others failing ok to the index.
func (g *Gate) require(ok func(*models.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			redirectToLogin(c)
			return
		}
		if !ok(user) {
			c.Redirect(http.StatusFound, IndexPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
	c.Abort()
}

// LoginURL is the login page returning to next afterwards.
func LoginURL(next string) string {
	if !IsLocalPath(next) {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"next": {next}}.Encode()
}

// IsLocalPath accepts absolute paths on this host only. Browsers drop tabs and
// newlines from URLs, so control characters and backslashes are refused outright.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	if strings.ContainsRune(p, '\\') || strings.IndexFunc(p, unicode.IsControl) >= 0 {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// SafeNext returns next when it is a local path and fallback otherwise.
func SafeNext(next, fallback string) string {
	if IsLocalPath(next) {
		return next
	}
	return fallback
}
