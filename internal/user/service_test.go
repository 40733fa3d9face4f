package user

import (
	"context"
	"testing"
	"time"

	"taskhub/internal/audit"
	"taskhub/internal/auth"

	"github.com/stretchr/testify/require"
)

func testHasher() *auth.Hasher {
	return &auth.Hasher{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newTestService(t *testing.T) (*Service, *MemoryRepo, *audit.MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(repo, testHasher(), audit.NewService(auditRepo))
	svc.clock = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, repo, auditRepo
}

func mustCreate(t *testing.T, svc *Service, email string) User {
	t.Helper()
	u, err := svc.Create(context.Background(), NewUser{Email: email, Name: "Test", Password: "password123"})
	require.NoError(t, err)
	return u
}

func TestCreate_NormalizesEmailAndDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	u, err := svc.Create(context.Background(), NewUser{Email: "  Ada@Example.COM ", Name: " Ada ", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", u.Email)
	require.Equal(t, "Ada", u.Name)
	require.Equal(t, RoleUser, u.Role)
	require.Equal(t, StatusActive, u.Status)
	require.NotEqual(t, "password123", u.PasswordHash)

	got, err := svc.GetByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestCreate_RejectsDuplicatesAndBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "dup@example.com")

	_, err := svc.Create(context.Background(), NewUser{Email: "DUP@example.com", Password: "password123"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Create(context.Background(), NewUser{Email: "not-an-email", Password: "password123"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Create(context.Background(), NewUser{Email: "short@example.com", Password: "short"})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestChangePassword(t *testing.T) {
	svc, repo, _ := newTestService(t)
	u := mustCreate(t, svc, "pw@example.com")
	ctx := context.Background()

	require.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "wrong-password", "newpassword1"), ErrWrongPassword)
	require.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "password123", "tiny"), ErrInvalidArgument)
	require.NoError(t, svc.ChangePassword(ctx, u.ID, "password123", "newpassword1"))

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	ok, err := testHasher().Verify("newpassword1", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPublicProfile_EmailOnlyForOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := mustCreate(t, svc, "owner@example.com")
	other := mustCreate(t, svc, "other@example.com")
	ctx := context.Background()

	p, err := svc.PublicProfile(ctx, owner.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", p.Email)

	p, err = svc.PublicProfile(ctx, other.ID, owner.ID)
	require.NoError(t, err)
	require.Empty(t, p.Email)

	p, err = svc.PublicProfile(ctx, "", owner.ID)
	require.NoError(t, err)
	require.Empty(t, p.Email)

	_, err = svc.PublicProfile(ctx, "", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	svc, _, auditRepo := newTestService(t)
	admin := mustCreate(t, svc, "admin@example.com")
	target := mustCreate(t, svc, "target@example.com")
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, admin.ID, admin.ID, StatusBanned, "")
	require.ErrorIs(t, err, ErrSelfStatusChange)

	_, err = svc.SetStatus(ctx, admin.ID, target.ID, Status("frozen"), "")
	require.ErrorIs(t, err, ErrInvalidArgument)

	u, err := svc.SetStatus(ctx, admin.ID, target.ID, StatusBanned, "10.0.0.9")
	require.NoError(t, err)
	require.Equal(t, StatusBanned, u.Status)

	evs := auditRepo.OfType(audit.EventUserStatusChanged)
	require.Len(t, evs, 1)
	require.Equal(t, target.ID, evs[0].UserID)
	require.Equal(t, "active", evs[0].Metadata["from"])
	require.Equal(t, "banned", evs[0].Metadata["to"])

	_, err = svc.PublicProfile(ctx, admin.ID, target.ID)
	require.ErrorIs(t, err, ErrNotFound, "banned profiles are hidden from others")
}

func TestList_Paginates(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, repo.Create(ctx, User{
			ID:        email,
			Email:     email,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	items, total, err := svc.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 2)
	require.Equal(t, "c@example.com", items[0].Email, "newest first")

	items, _, err = svc.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, _, err = svc.List(ctx, 101, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
