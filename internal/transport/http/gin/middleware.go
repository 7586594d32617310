package httpgin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// RequestID echoes the caller's X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set(ctxRequestID, id)
		c.Next()
	}
}

// CORS allows any origin to read the API. Nothing here mutates state, so only
// safe methods are exposed.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Accept", headerRequestID, "If-None-Match"},
		ExposeHeaders: []string{headerRequestID, "ETag", "Cache-Control"},
		MaxAge:        12 * time.Hour,
	})
}

// AccessLog writes one record per request. Server errors log at error level,
// client errors at warn, revalidated reads (304) at debug.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("uri", c.Request.URL.RequestURI()),
			slog.Int("status", status),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case status == http.StatusNotModified:
			level = slog.LevelDebug
		}

		logger.Log(c.Request.Context(), level, "http", slog.Group("http", attrs...))
	}
}
