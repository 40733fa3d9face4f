package login

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskhub/internal/audit"
	"taskhub/internal/auth"
	"taskhub/internal/config"
	"taskhub/internal/jobs"
	"taskhub/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu    sync.Mutex
	names []string
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, _ any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.names = append(q.names, name)
	return "job-1", nil
}

type fixture struct {
	svc     *Service
	users   *user.Service
	tokens  *auth.Manager
	audit   *audit.MemoryRepo
	queue   *fakeQueue
	results []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher := &auth.Hasher{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	tokens, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       strings.Repeat("s", 32),
		JWTIssuer:       "taskhub-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	f := &fixture{
		users:  user.NewService(user.NewMemoryRepo(), hasher, nil),
		tokens: tokens,
		audit:  audit.NewMemoryRepo(),
		queue:  &fakeQueue{},
	}
	f.svc, err = NewService(f.users, tokens, hasher, Options{
		Audit:   audit.NewService(f.audit),
		Jobs:    f.queue,
		Observe: func(r string) { f.results = append(f.results, r) },
	})
	require.NoError(t, err)
	return f
}

func TestRegister_IssuesTokensAndQueuesWelcome(t *testing.T) {
	f := newFixture(t)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	s, err := f.svc.Register(ctx, "New@Example.com", "password123", "New")
	require.NoError(t, err)
	require.Equal(t, "new@example.com", s.User.Email)

	claims, err := f.tokens.VerifyAccessToken(s.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, s.User.ID, claims.Subject)
	require.Equal(t, "new@example.com", claims.Email)

	_, err = f.tokens.VerifyRefreshToken(s.Tokens.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, []string{jobs.NameUserWelcome}, f.queue.names)
	evs := f.audit.OfType(audit.EventUserRegistered)
	require.Len(t, evs, 1)
	require.Equal(t, "203.0.113.7", evs[0].IPAddress)

	_, err = f.svc.Register(ctx, "new@example.com", "password123", "Again")
	require.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestLogin_UnknownEmailAndWrongPasswordLookTheSame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "a@example.com", "password123", "")
	require.NoError(t, err)

	_, errUnknown := f.svc.Login(ctx, "nobody@example.com", "password123")
	_, errWrong := f.svc.Login(ctx, "a@example.com", "password124")
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrong.Error())

	require.Equal(t, []string{ResultInvalidCredentials, ResultInvalidCredentials}, f.results)
	require.Len(t, f.audit.OfType(audit.EventLoginFailed), 2)
}

func TestLogin_StatusRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, err := f.svc.Register(ctx, "admin@example.com", "password123", "")
	require.NoError(t, err)
	s, err := f.svc.Register(ctx, "user@example.com", "password123", "")
	require.NoError(t, err)

	_, err = f.users.SetStatus(ctx, admin.User.ID, s.User.ID, user.StatusInactive, "")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err, "inactive accounts may sign in")

	_, err = f.users.SetStatus(ctx, admin.User.ID, s.User.ID, user.StatusBanned, "")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "user@example.com", "password123")
	require.ErrorIs(t, err, ErrAccountBanned)

	_, err = f.svc.Refresh(ctx, s.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrAccountBanned)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Register(ctx, "r@example.com", "password123", "")
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, s.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, s.User.ID, next.User.ID)
	require.NotEqual(t, s.Tokens.AccessToken, next.Tokens.AccessToken)
	require.Len(t, f.audit.OfType(audit.EventTokenRefreshed), 1)

	_, err = f.svc.Refresh(ctx, s.Tokens.AccessToken)
	require.ErrorIs(t, err, auth.ErrWrongTokenType)

	orphan, _, err := f.tokens.IssueRefreshToken("00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, orphan)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestHandlers_LoginResponseShape(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), "h@example.com", "password123", "H")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := Handlers{Service: f.svc}
	r.POST("/login", h.Login)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"h@example.com","password":"password123"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, k := range []string{`"access_token"`, `"refresh_token"`, `"token_type":"Bearer"`, `"expires_in"`} {
		require.Contains(t, body, k)
	}
	require.NotContains(t, body, "argon2id")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"h@example.com","password":"wrong-one"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"error":"INVALID_CREDENTIALS"`)
}
