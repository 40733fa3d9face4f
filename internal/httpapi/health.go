package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Liveness answers as long as the process serves HTTP.
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness runs every checker with a shared timeout and reports each result.
// Any failure turns the response into a 503 so load balancers drain the instance.
func Readiness(timeout time.Duration, checks map[string]Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "up"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
