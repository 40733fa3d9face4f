package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskhub/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestFail_UsesCodedContract(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		Fail(c, apperr.NotFound("task not found"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	require.Equal(t, apperr.CodeNotFound, body.Error)
	require.Equal(t, "task not found", body.Message)
}

func TestFail_HidesUncodedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		Fail(c, errors.New("pq: connection refused to 10.0.0.5"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	require.Equal(t, apperr.CodeInternal, body.Error)
	require.NotContains(t, body.Message, "10.0.0.5")
}

type signupBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func TestBindJSON_ReportsFieldErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var req signupBody
		if !BindJSON(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"email":"nope","password":"short"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	require.Equal(t, apperr.CodeValidation, body.Error)
	require.Contains(t, body.Message, "email must be a valid email")
	require.Contains(t, body.Message, "password must be at least 8 characters")
}

func TestReadiness_ReportsDegradedDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/readyz", Readiness(time.Second, map[string]Checker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "up", body.Checks["postgres"])
	require.Equal(t, "down", body.Checks["redis"])
}
