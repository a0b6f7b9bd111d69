package access

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCSRF(t *testing.T) {
	router := gin.New()
	router.Use(CSRF([]string{"https://press.example.com/"}))
	router.Any("/form", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		referer    string
		wantStatus int
	}{
		{"GET passes without headers", http.MethodGet, "", "", http.StatusOK},
		{"HEAD passes without headers", http.MethodHead, "", "", http.StatusOK},
		{"POST from same host", http.MethodPost, "http://example.com", "", http.StatusOK},
		{"POST from allowed origin", http.MethodPost, "https://press.example.com", "", http.StatusOK},
		{"POST from allowed origin, case insensitive", http.MethodPost, "HTTPS://PRESS.EXAMPLE.COM", "", http.StatusOK},
		{"POST with same host referer", http.MethodPost, "", "http://example.com/login?next=/", http.StatusOK},
		{"POST from foreign origin", http.MethodPost, "https://evil.com", "", http.StatusForbidden},
		{"POST with foreign referer", http.MethodPost, "", "https://evil.com/page", http.StatusForbidden},
		{"POST without headers", http.MethodPost, "", "", http.StatusForbidden},
		{"POST with garbage referer", http.MethodPost, "", "::not a url", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// httptest requests carry Host: example.com
			req := httptest.NewRequest(tt.method, "/form", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
