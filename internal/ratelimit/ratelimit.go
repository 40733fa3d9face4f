// Package ratelimit provides a Redis fixed-window counter as gin middleware.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/httpapi"
	"taskhub/pkg/logger"
	"taskhub/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// KeyFunc identifies the caller. Returning false skips limiting for the request.
type KeyFunc func(c *gin.Context) (string, bool)

// ByClientIP keys on gin's resolved client address.
func ByClientIP(c *gin.Context) (string, bool) {
	ip := c.ClientIP()
	return "ip:" + ip, ip != ""
}

// ByUser keys on the authenticated subject, falling back to the client IP.
func ByUser(c *gin.Context) (string, bool) {
	if id, ok := auth.IdentityFrom(c.Request.Context()); ok {
		return "user:" + id.Subject, true
	}
	return ByClientIP(c)
}

type Options struct {
	// Scope namespaces the counters and labels rejections, e.g. "auth" or "api".
	Scope  string
	Limit  int
	Window time.Duration
	Key    KeyFunc
	// OnReject is called once per rejected request.
	OnReject func(scope string)
}

type Limiter struct {
	rdb  redis.Scripter
	opts Options
}

func New(rdb redis.Scripter, opts Options) *Limiter {
	if opts.Key == nil {
		opts.Key = ByClientIP
	}
	if opts.OnReject == nil {
		opts.OnReject = func(string) {}
	}
	return &Limiter{rdb: rdb, opts: opts}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int
	// ResetIn is the time left in the current window.
	ResetIn time.Duration
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	n, ttl, err := utils.IncrWindow(ctx, l.rdb, "ratelimit:"+l.opts.Scope+":"+key, l.opts.Window)
	if err != nil {
		return Decision{}, err
	}
	remaining := l.opts.Limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   n <= int64(l.opts.Limit),
		Count:     n,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

// Middleware rejects callers over the limit with 429. Redis failures are
// logged and the request is let through.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.opts.Limit <= 0 {
			c.Next()
			return
		}
		key, ok := l.opts.Key(c)
		if !ok {
			c.Next()
			return
		}

		d, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable, allowing request",
				"scope", l.opts.Scope,
				"err", err,
			)
			c.Next()
			return
		}

		c.Header(HeaderLimit, strconv.Itoa(l.opts.Limit))
		c.Header(HeaderRemaining, strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Header(HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(d.ResetIn)))
			l.opts.OnReject(l.opts.Scope)
			httpapi.Abort(c, http.StatusTooManyRequests, apperr.CodeRateLimited, "too many requests")
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
