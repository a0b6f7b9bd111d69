// Package web serves the site: server-rendered pages over the account, login and
// article services.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pressroom/internal/access"
	"pressroom/internal/accounts"
	"pressroom/internal/articles"
	"pressroom/internal/auth"
	"pressroom/internal/models"
	"pressroom/internal/stats"
	"pressroom/internal/telegram"
	"pressroom/internal/validation"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/golang-commonmark/markdown"
)

//go:embed templates/*
var templateFS embed.FS

// Raw HTML in article bodies is escaped.
var md = markdown.New(markdown.HTML(false), markdown.Linkify(true), markdown.Typographer(true), markdown.MaxNesting(10))

// Deps are the services behind the pages. Telegram fields are optional and only
// used in webhook mode.
type Deps struct {
	Store     *accounts.Store
	Registrar *accounts.Registrar
	TwoFactor *auth.TwoFactor
	Articles  *articles.Service
	Sessions  *auth.SessionManager
	Stats     *stats.Stats
	Ping      func(ctx context.Context) error

	AllowedOrigins []string

	Telegram      *telegram.Handler
	Bot           *tgbotapi.BotAPI
	WebhookSecret string

	Log *slog.Logger
}

type Server struct {
	Deps
	gate *access.Gate
	tmpl *template.Template
}

func New(d Deps) (*Server, error) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Stats == nil {
		d.Stats = stats.New()
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": func(s string) template.HTML {
			return template.HTML(md.RenderToString([]byte(s)))
		},
		"err": func(errs validation.Errors, field string) string {
			return strings.Join(errs[field], " ")
		},
		"can": func(u *models.User, codename string) bool {
			return u.HasPerm(codename)
		},
		"isStaff": func(u *models.User) bool {
			return u != nil && (u.IsStaff || u.IsSuperuser)
		},
		"roleName": func(u models.User) string {
			if len(u.Roles) == 0 {
				return ""
			}
			return u.Roles[0].Name
		},
		"ms": func(d time.Duration) string {
			return d.Round(time.Microsecond).String()
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		Deps: d,
		gate: access.NewGate(d.Sessions, d.Store, d.Log),
		tmpl: tmpl,
	}, nil
}

// Router builds the gin engine with every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(s.tmpl)
	r.Use(requestID(), s.accessLog(), s.recovery())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.Telegram != nil && s.Bot != nil && s.WebhookSecret != "" {
		r.POST("/telegram/webhook/:secret", s.Telegram.Webhook(s.Bot, s.WebhookSecret))
	}

	site := r.Group("", access.CSRF(s.AllowedOrigins), s.gate.Authenticate())
	site.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, access.IndexPath) })
	site.GET("/articles", s.index)

	site.GET("/login", s.loginForm)
	site.POST("/login", s.login)
	site.GET("/verify/:user_id", s.verifyForm)
	site.POST("/verify/:user_id", s.verify)
	site.GET("/sign_up", s.signUpForm)
	site.POST("/sign_up", s.signUp)
	site.GET("/logout", s.logout)

	site.GET("/articles/new", s.gate.PermissionRequired(models.PermAddArticle), s.newArticleForm)
	site.POST("/articles/new", s.gate.PermissionRequired(models.PermAddArticle), s.createArticle)
	site.GET("/articles/review", s.gate.StaffRequired(), s.review)
	site.GET("/articles/:id", s.article)
	site.POST("/articles/:id/update", s.gate.PermissionRequired(models.PermChangeArticle), s.updateArticle)

	site.GET("/categories/new", s.gate.PermissionRequired(models.PermAddCategory), s.newCategoryForm)
	site.POST("/categories/new", s.gate.PermissionRequired(models.PermAddCategory), s.createCategory)
	site.GET("/categories/:id", s.category)
	site.POST("/categories/:id/delete", s.gate.PermissionRequired(models.PermDeleteCategory), s.deleteCategory)

	site.GET("/profile", s.gate.LoginRequired(), s.profile)
	site.POST("/profile", s.gate.LoginRequired(), s.updateProfile)

	site.GET("/admin_panel", s.gate.SuperuserRequired(), s.adminPanel)
	site.POST("/users/:id/status", s.gate.SuperuserRequired(), s.setStatus)

	return r
}

func (s *Server) health(c *gin.Context) {
	if s.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			s.Log.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// render adds the current user to data and writes the page.
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["User"] = access.CurrentUser(c)
	c.HTML(status, name, data)
}

// fail logs an unexpected error and answers 500.
func (s *Server) fail(c *gin.Context, msg string, err error) {
	s.Log.Error(msg, "error", err, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey))
	c.String(http.StatusInternalServerError, "Internal Server Error")
	c.Abort()
}

func (s *Server) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

// denied maps service-level permission errors onto the gate's redirects.
func (s *Server) denied(c *gin.Context, err error) bool {
	if !errors.Is(err, articles.ErrPermissionDenied) {
		return false
	}
	s.redirect(c, access.LoginURL(c.Request.URL.RequestURI()))
	return true
}
