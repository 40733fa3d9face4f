// Package login issues token pairs for credentials and refresh tokens.
package login

import (
	"context"
	"errors"
	"fmt"

	"taskhub/internal/audit"
	"taskhub/internal/auth"
	"taskhub/internal/jobs"
	"taskhub/internal/user"
	"taskhub/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("login: invalid credentials")
	ErrAccountBanned      = errors.New("login: account banned")
)

// Login outcomes, also used as metric labels.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultBanned             = "banned"
	ResultError              = "error"
)

// Users is the slice of *user.Service the login flows need.
type Users interface {
	Create(ctx context.Context, in user.NewUser) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Get(ctx context.Context, id string) (user.User, error)
}

type Tokens interface {
	IssuePair(subject, email string) (auth.TokenPair, error)
	VerifyRefreshToken(tokenString string) (auth.Claims, error)
}

type PasswordVerifier interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Event)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}

// Session is what a successful register, login or refresh returns.
type Session struct {
	User   user.User
	Tokens auth.TokenPair
}

type Service struct {
	users   Users
	tokens  Tokens
	hasher  PasswordVerifier
	audit   Auditor
	jobs    Enqueuer
	observe func(result string)

	// dummyHash is verified against when the email is unknown so both
	// failure paths cost one hash computation.
	dummyHash string
}

type Options struct {
	Audit   Auditor
	Jobs    Enqueuer
	Observe func(result string)
}

func NewService(users Users, tokens Tokens, hasher PasswordVerifier, opts Options) (*Service, error) {
	dummy, err := hasher.Hash("taskhub-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("login: prepare dummy hash: %w", err)
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string) {}
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		audit:     opts.Audit,
		jobs:      opts.Jobs,
		observe:   observe,
		dummyHash: dummy,
	}, nil
}

// Register creates an account, issues its first token pair and queues the welcome mail.
func (s *Service) Register(ctx context.Context, email, password, name string) (Session, error) {
	u, err := s.users.Create(ctx, user.NewUser{Email: email, Name: name, Password: password})
	if err != nil {
		return Session{}, err
	}
	pair, err := s.tokens.IssuePair(u.ID, u.Email)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.record(ctx, audit.Event{UserID: u.ID, Type: audit.EventUserRegistered, Message: "account created"})
	s.enqueue(ctx, jobs.NameUserWelcome, jobs.UserWelcome{UserID: u.ID, Email: u.Email, Name: u.Name})
	return Session{User: u, Tokens: pair}, nil
}

// Login checks credentials. Unknown email and wrong password are indistinguishable
// to the caller. Banned accounts are refused; inactive ones may sign in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		_, _ = s.hasher.Verify(password, s.dummyHash)
		s.fail(ctx, "", user.NormalizeEmail(email), ResultInvalidCredentials)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		s.observe(ResultError)
		return Session{}, err
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		s.observe(ResultError)
		return Session{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.fail(ctx, u.ID, u.Email, ResultInvalidCredentials)
		return Session{}, ErrInvalidCredentials
	}
	if u.Status == user.StatusBanned {
		s.fail(ctx, u.ID, u.Email, ResultBanned)
		return Session{}, ErrAccountBanned
	}

	pair, err := s.tokens.IssuePair(u.ID, u.Email)
	if err != nil {
		s.observe(ResultError)
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	s.observe(ResultSuccess)
	s.record(ctx, audit.Event{UserID: u.ID, Type: audit.EventLoginSucceeded})
	return Session{User: u, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The account is
// reloaded so that deleted or banned users cannot keep refreshing.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return Session{}, err
	}
	u, err := s.users.Get(ctx, claims.Subject)
	if errors.Is(err, user.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if u.Status == user.StatusBanned {
		return Session{}, ErrAccountBanned
	}

	pair, err := s.tokens.IssuePair(u.ID, u.Email)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	s.record(ctx, audit.Event{UserID: u.ID, Type: audit.EventTokenRefreshed})
	return Session{User: u, Tokens: pair}, nil
}

func (s *Service) fail(ctx context.Context, userID, email, result string) {
	s.observe(result)
	s.record(ctx, audit.Event{
		UserID:   userID,
		Type:     audit.EventLoginFailed,
		Message:  result,
		Metadata: map[string]string{"email": email},
	})
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIP(ctx)
	}
	s.audit.Record(ctx, e)
}

func (s *Service) enqueue(ctx context.Context, name string, payload any) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.Enqueue(ctx, name, payload); err != nil {
		logger.From(ctx).Warn("enqueue failed", "job", name, "err", err)
	}
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
