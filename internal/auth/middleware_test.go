package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskhub/internal/config"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newRouter(mw gin.HandlerFunc, reached *bool, seen *Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", mw, func(c *gin.Context) {
		*reached = true
		if id, ok := IdentityFrom(c.Request.Context()); ok {
			*seen = id
		}
		c.Status(http.StatusOK)
	})
	return r
}

func do(r *gin.Engine, authz string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return b
}

func TestRequireAccessToken_MissingHeader(t *testing.T) {
	m := newTestManager(t, config.AuthConfig{})
	var reached bool
	var seen Identity
	r := newRouter(RequireAccessToken(m), &reached, &seen)

	w := do(r, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if b := decode(t, w); b.Error != "UNAUTHORIZED" || b.Message == "" {
		t.Fatalf("unexpected body %+v", b)
	}
	if reached {
		t.Fatalf("handler must not run")
	}
}

func TestRequireAccessToken_MalformedHeader(t *testing.T) {
	m := newTestManager(t, config.AuthConfig{})
	for _, h := range []string{"Basic abc", "Bearer", "Bearer ", "Bearer a b", "token"} {
		var reached bool
		var seen Identity
		r := newRouter(RequireAccessToken(m), &reached, &seen)

		w := do(r, h)
		if w.Code != http.StatusUnauthorized || decode(t, w).Error != "UNAUTHORIZED" {
			t.Fatalf("%q: expected 401 UNAUTHORIZED, got %d %s", h, w.Code, w.Body.String())
		}
		if reached {
			t.Fatalf("%q: handler must not run", h)
		}
	}
}

func TestRequireAccessToken_InvalidTokens(t *testing.T) {
	m := newTestManager(t, config.AuthConfig{})
	pair, err := m.IssuePair("u1", "u1@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for name, tok := range map[string]string{
		"garbage": "abc.def.ghi",
		"refresh": pair.RefreshToken,
	} {
		var reached bool
		var seen Identity
		r := newRouter(RequireAccessToken(m), &reached, &seen)

		w := do(r, "Bearer "+tok)
		if w.Code != http.StatusUnauthorized || decode(t, w).Error != "INVALID_TOKEN" {
			t.Fatalf("%s: expected 401 INVALID_TOKEN, got %d %s", name, w.Code, w.Body.String())
		}
		if reached {
			t.Fatalf("%s: handler must not run", name)
		}
	}
}

func TestRequireAccessToken_AttachesIdentity(t *testing.T) {
	m := newTestManager(t, config.AuthConfig{})
	tok, _, _ := m.IssueAccessToken("u1", "u1@x.com")

	var reached bool
	var seen Identity
	r := newRouter(RequireAccessToken(m), &reached, &seen)

	w := do(r, "Bearer "+tok)
	if w.Code != http.StatusOK || !reached {
		t.Fatalf("expected pass-through, got %d", w.Code)
	}
	if seen.Subject != "u1" || seen.Email != "u1@x.com" {
		t.Fatalf("unexpected identity %+v", seen)
	}
}

func TestOptionalAccessToken_AnonymousAndExpired(t *testing.T) {
	m := newTestManager(t, config.AuthConfig{})
	tok, _, _ := m.IssueAccessToken("u1", "u1@x.com")
	// Verify an hour later: expired.
	m.clock = func() time.Time { return testNow.Add(time.Hour) }

	for _, h := range []string{"", "Bearer " + tok, "Basic zzz"} {
		var reached bool
		var seen Identity
		r := newRouter(OptionalAccessToken(m), &reached, &seen)

		w := do(r, h)
		if w.Code != http.StatusOK || !reached {
			t.Fatalf("%q: expected pass-through, got %d", h, w.Code)
		}
		if seen.Subject != "" {
			t.Fatalf("%q: expected no identity, got %+v", h, seen)
		}
	}
}

func TestOptionalAccessToken_AttachesIdentity(t *testing.T) {
	m := newTestManager(t, config.AuthConfig{})
	tok, _, _ := m.IssueAccessToken("u1", "u1@x.com")

	var reached bool
	var seen Identity
	r := newRouter(OptionalAccessToken(m), &reached, &seen)

	do(r, "Bearer "+tok)
	if !reached || seen.Subject != "u1" {
		t.Fatalf("expected identity u1, got %+v", seen)
	}
}

type foreignVerifier struct{}

func (foreignVerifier) VerifyAccessToken(string) (Claims, error) {
	return Claims{}, errors.New("backend exploded")
}

func TestEnforcer_ObservesOutcomesAndKeeps401ForForeignErrors(t *testing.T) {
	var results []string
	e := NewEnforcer(foreignVerifier{}, func(mode, result string) {
		results = append(results, mode+":"+result)
	})

	var reached bool
	var seen Identity
	r := newRouter(e.Require(), &reached, &seen)

	w := do(r, "Bearer abc")
	if w.Code != http.StatusUnauthorized || decode(t, w).Error != "INVALID_TOKEN" {
		t.Fatalf("expected 401 INVALID_TOKEN, got %d %s", w.Code, w.Body.String())
	}
	do(r, "")

	want := []string{"required:invalid_token", "required:missing"}
	if len(results) != len(want) || results[0] != want[0] || results[1] != want[1] {
		t.Fatalf("unexpected observations %v", results)
	}
}

func TestUserID_WithoutIdentity(t *testing.T) {
	if _, err := UserID(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	ctx := WithIdentity(context.Background(), Identity{Subject: "u1"})
	if id, err := UserID(ctx); err != nil || id != "u1" {
		t.Fatalf("expected u1, got %q %v", id, err)
	}
}
