package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pressroom/internal/accounts"
	"pressroom/internal/auth"
	"pressroom/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockUsers map[uint]*models.User

func (m mockUsers) UserByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, accounts.ErrUserNotFound
}

func role(name string, perms ...string) models.Role {
	r := models.Role{Name: name}
	for _, p := range perms {
		r.Permissions = append(r.Permissions, models.Permission{Codename: p})
	}
	return r
}

var testUsers = mockUsers{
	1: {Model: gorm.Model{ID: 1}, Username: "writer", Roles: []models.Role{role(accounts.RoleUser, models.PermAddArticle)}},
	2: {Model: gorm.Model{ID: 2}, Username: "editor", IsStaff: true, Roles: []models.Role{
		role(accounts.RoleStaff, models.PermChangeArticle, models.PermChangeStatus, models.PermAddCategory),
	}},
	3: {Model: gorm.Model{ID: 3}, Username: "root", IsStaff: true, IsSuperuser: true},
}

func newRouter(sm *auth.SessionManager) *gin.Engine {
	g := NewGate(sm, testUsers, nil)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }

	r := gin.New()
	r.Use(g.Authenticate())
	r.GET("/profile", g.LoginRequired(), ok)
	r.GET("/articles/new", g.PermissionRequired(models.PermAddArticle), ok)
	r.GET("/articles/review", g.StaffRequired(), ok)
	r.GET("/admin_panel", g.SuperuserRequired(), ok)
	r.GET("/whoami", func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.Username)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return r
}

func sessionCookie(t *testing.T, sm *auth.SessionManager, userID uint) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := sm.SetSession(rec, userID); err != nil {
		t.Fatalf("SetSession() error = %v", err)
	}
	return rec.Result().Cookies()[0]
}

func TestGate(t *testing.T) {
	sm := auth.NewSessionManager("", "", false, nil)
	router := newRouter(sm)

	tests := []struct {
		name         string
		path         string
		userID       uint // 0 for anonymous
		wantStatus   int
		wantLocation string
	}{
		{"anonymous profile", "/profile", 0, http.StatusFound, "/login?next=%2Fprofile"},
		{"writer profile", "/profile", 1, http.StatusOK, ""},

		{"anonymous new article", "/articles/new", 0, http.StatusFound, "/login?next=%2Farticles%2Fnew"},
		{"writer new article", "/articles/new", 1, http.StatusOK, ""},
		{"staff new article goes to login", "/articles/new", 2, http.StatusFound, "/login?next=%2Farticles%2Fnew"},
		{"superuser new article", "/articles/new", 3, http.StatusOK, ""},

		{"anonymous review", "/articles/review", 0, http.StatusFound, "/login?next=%2Farticles%2Freview"},
		{"writer review goes to index", "/articles/review", 1, http.StatusFound, "/articles"},
		{"staff review", "/articles/review", 2, http.StatusOK, ""},

		{"staff admin panel goes to index", "/admin_panel", 2, http.StatusFound, "/articles"},
		{"superuser admin panel", "/admin_panel", 3, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.userID != 0 {
				req.AddCookie(sessionCookie(t, sm, tt.userID))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if loc := rec.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
			}
		})
	}
}

func TestAuthenticate_DeletedUserClearsSession(t *testing.T) {
	sm := auth.NewSessionManager("", "", false, nil)
	router := newRouter(sm)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(sessionCookie(t, sm, 99))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if body := rec.Body.String(); body != "anonymous" {
		t.Errorf("body = %q, want anonymous", body)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %v", cookies)
	}
}

func TestAuthenticate_ForgedCookie(t *testing.T) {
	router := newRouter(auth.NewSessionManager("", "", false, nil))
	other := auth.NewSessionManager("", "", false, nil)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(sessionCookie(t, other, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if body := rec.Body.String(); body != "anonymous" {
		t.Errorf("body = %q, want anonymous", body)
	}
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"/articles/new", "/articles/new"},
		{"/articles?page=2", "/articles?page=2"},
		{"", "/articles"},
		{"//evil.com", "/articles"},
		{"/\\evil.com", "/articles"},
		{"https://evil.com/", "/articles"},
		{"articles", "/articles"},
		{"/\t/evil.com", "/articles"},
		{"/\n/evil.com", "/articles"},
		{"/\r/evil.com", "/articles"},
		{"/articles/\x00", "/articles"},
		{"/a\\b", "/articles"},
	}
	for _, tt := range tests {
		if got := SafeNext(tt.next, IndexPath); got != tt.want {
			t.Errorf("SafeNext(%q) = %q, want %q", tt.next, got, tt.want)
		}
	}
}

func TestLoginURL(t *testing.T) {
	if got := LoginURL("/articles/new"); got != "/login?next=%2Farticles%2Fnew" {
		t.Errorf("LoginURL() = %q", got)
	}
	if got := LoginURL("//evil.com"); got != "/login" {
		t.Errorf("LoginURL(external) = %q, want /login", got)
	}
	if got := LoginURL("/\t/evil.com"); got != "/login" {
		t.Errorf("LoginURL(tab) = %q, want /login", got)
	}
}
