package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	headerRequestID = "X-Request-Id"
	headerTraceID   = "X-Trace-Id"

	maxIncomingIDLen = 128
)

// incomingID returns a client-supplied id when it is short and limited to
// [A-Za-z0-9._:-]; otherwise it returns "" so a fresh id is generated.
func incomingID(v string) string {
	if v == "" || len(v) > maxIncomingIDLen {
		return ""
	}
	for i := 0; i < len(v); i++ {
		ch := v[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return ""
		}
	}
	return v
}

// Middleware returns a Gin middleware that injects request_id/trace_id and logs request summaries.
// Both ids and the request-scoped logger are also placed on the request context so
// services below the handler can log with them.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := incomingID(c.GetHeader(headerRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		tid := incomingID(c.GetHeader(headerTraceID))
		if tid == "" {
			tid = ulid.Make().String()
		}
		c.Writer.Header().Set(headerRequestID, rid)
		c.Writer.Header().Set(headerTraceID, tid)

		reqLogger := l.With("request_id", rid, "trace_id", tid)
		c.Set("logger", reqLogger)

		ctx := WithRequestID(c.Request.Context(), rid)
		ctx = WithTraceID(ctx, tid)
		ctx = With(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		dur := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", float64(dur.Milliseconds()),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
			return
		}
		reqLogger.Info("request", attrs...)
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
