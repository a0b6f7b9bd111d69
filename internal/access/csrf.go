package access

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CSRF rejects state-changing requests whose Origin, or Referer when Origin is
// absent, is neither the request host nor one of allowedOrigins.
func CSRF(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowed[normalizeOrigin(origin)] = true
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = extractOrigin(c.GetHeader("Referer"))
		}
		if origin == "" || !(allowed[normalizeOrigin(origin)] || sameHost(origin, c.Request.Host)) {
			c.String(http.StatusForbidden, "Forbidden (CSRF check failed)")
			c.Abort()
			return
		}
		c.Next()
	}
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(origin), "/")
}

// extractOrigin returns scheme://host of rawURL, or "".
func extractOrigin(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

func sameHost(origin, host string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return parsed.Host != "" && strings.EqualFold(parsed.Host, host)
}
