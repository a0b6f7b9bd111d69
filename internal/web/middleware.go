package web

import (
	"net/http"
	"strconv"
	"time"

	"pressroom/internal/access"
	"pressroom/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// requestID reuses a well-formed incoming id or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs every request and feeds the stats and latency histogram.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.Stats.Begin()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		s.Stats.Done(status, duration, int64(c.Writer.Size()))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(duration.Seconds())

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", duration,
			"request_id", c.GetString(requestIDKey),
		}
		if user := access.CurrentUser(c); user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}
		if status >= http.StatusInternalServerError {
			s.Log.Warn("request", attrs...)
			return
		}
		s.Log.Info("request", attrs...)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		s.Log.Error("panic serving request", "error", err, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey))
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
