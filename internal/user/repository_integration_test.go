//go:build integration

package user

import (
	"context"
	"testing"
	"time"

	"taskhub/internal/testpg"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository(t *testing.T) {
	db := testpg.Start(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := User{
		ID: uuid.NewString(), Email: "pg@example.com", Name: "PG", PasswordHash: "hash",
		Role: RoleUser, Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, u))

	dup := u
	dup.ID = uuid.NewString()
	require.ErrorIs(t, repo.Create(ctx, dup), ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "pg@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.True(t, now.Equal(got.CreatedAt))

	_, err = repo.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	later := now.Add(time.Minute)
	updated, err := repo.UpdateProfile(ctx, u.ID, "Renamed", later)
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "hash2", later))
	require.ErrorIs(t, repo.UpdatePassword(ctx, uuid.NewString(), "x", later), ErrNotFound)

	banned, err := repo.UpdateStatus(ctx, u.ID, StatusBanned, later)
	require.NoError(t, err)
	require.Equal(t, StatusBanned, banned.Status)

	items, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, "hash2", items[0].PasswordHash)
}
