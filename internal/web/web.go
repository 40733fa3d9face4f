// Package web serves the single-page frontend from a directory on disk.
package web

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// apiPrefixes never fall back to index.html; unknown paths there are JSON 404s.
var apiPrefixes = []string{"/api/", "/metrics", "/healthz", "/readyz"}

// NotFound is the NoRoute handler when no frontend is configured.
func NotFound(c *gin.Context) {
	httpapi.Abort(c, http.StatusNotFound, apperr.CodeNotFound, "route not found")
}

// SPA returns a NoRoute handler serving files from dir, falling back to
// dir/index.html for unknown GET paths so client-side routing works.
func SPA(dir string) (gin.HandlerFunc, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	index := filepath.Join(root, "index.html")
	if _, err := os.Stat(index); err != nil {
		return nil, fmt.Errorf("web: %s: %w", index, err)
	}

	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) || isAPI(p) {
			NotFound(c)
			return
		}

		// path.Clean on a rooted path cannot climb above root.
		rel := strings.TrimPrefix(path.Clean("/"+p), "/")
		if rel != "" {
			full := filepath.Join(root, filepath.FromSlash(rel))
			if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
				c.File(full)
				return
			}
			if path.Ext(rel) != "" {
				// Missing asset, not a client route.
				c.Status(http.StatusNotFound)
				return
			}
		}
		c.Header("Cache-Control", "no-cache")
		c.File(index)
	}, nil
}

func isAPI(p string) bool {
	for _, prefix := range apiPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
