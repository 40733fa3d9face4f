package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"taskhub/internal/audit"

	"github.com/google/uuid"
)

// PasswordHasher is satisfied by *auth.Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// StatusAuditor records status changes. *audit.Service satisfies it.
type StatusAuditor interface {
	LogStatusChange(ctx context.Context, actorID, targetID, ip, from, to string)
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
	audit  StatusAuditor
	clock  func() time.Time
}

func NewService(repo Repository, hasher PasswordHasher, auditor StatusAuditor) *Service {
	return &Service{repo: repo, hasher: hasher, audit: auditor, clock: time.Now}
}

var _ StatusAuditor = (*audit.Service)(nil)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NormalizeEmail lowercases and trims an address. Lookups and uniqueness use this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < MinPasswordLength {
		return invalid("password must be at least %d characters", MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return invalid("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", invalid("name must be at most %d characters", MaxNameLength)
	}
	return name, nil
}

// Create registers a new account with role user and status active.
func (s *Service) Create(ctx context.Context, in NewUser) (User, error) {
	email := NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return User{}, invalid("email must be a valid email")
	}
	if err := validatePassword(in.Password); err != nil {
		return User{}, err
	}
	name, err := validateName(in.Name)
	if err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock().UTC()
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         RoleUser,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetByEmail looks up an account by its normalized address.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// Get loads an account by id. It backs rbac's AccountLookup.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID, name string) (User, error) {
	name, err := validateName(name)
	if err != nil {
		return User{}, err
	}
	if name == "" {
		return User{}, invalid("name is required")
	}
	return s.repo.UpdateProfile(ctx, userID, name, s.clock().UTC())
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(current, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, hash, s.clock().UTC())
}

// PublicProfile returns userID's profile as seen by viewerID.
// viewerID is empty for anonymous callers.
func (s *Service) PublicProfile(ctx context.Context, viewerID, userID string) (Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if u.Status == StatusBanned && viewerID != u.ID {
		return Profile{}, ErrNotFound
	}
	p := Profile{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
	if viewerID != "" && viewerID == u.ID {
		p.Email = u.Email
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		return nil, 0, invalid("limit must be between 1 and 100")
	}
	if offset < 0 {
		return nil, 0, invalid("offset must be >= 0")
	}
	return s.repo.List(ctx, limit, offset)
}

// SetStatus changes userID's status on behalf of admin actorID.
func (s *Service) SetStatus(ctx context.Context, actorID, userID string, status Status, ip string) (User, error) {
	if !status.Valid() {
		return User{}, invalid("status must be one of: active inactive banned")
	}
	if actorID == userID {
		return User{}, ErrSelfStatusChange
	}
	before, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	after, err := s.repo.UpdateStatus(ctx, userID, status, s.clock().UTC())
	if err != nil {
		return User{}, err
	}
	if s.audit != nil {
		s.audit.LogStatusChange(ctx, actorID, userID, ip, string(before.Status), string(after.Status))
	}
	return after, nil
}
