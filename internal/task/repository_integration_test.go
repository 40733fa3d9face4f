//go:build integration

package task

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
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	owner := uuid.NewString()
	stranger := uuid.NewString()
	for _, id := range []string{owner, stranger} {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, email, name, password_hash, created_at, updated_at) VALUES ($1,$2,'', 'h', $3, $3)`,
			id, id+"@example.com", now)
		require.NoError(t, err)
	}

	repo := NewPostgresRepository(db)
	past := now.Add(-time.Hour)
	tk := Task{
		ID: uuid.NewString(), OwnerID: owner, Title: "pg task",
		Status: StatusTodo, Priority: PriorityHigh, DueAt: &past,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, tk))
	require.NoError(t, repo.Create(ctx, Task{
		ID: uuid.NewString(), OwnerID: owner, Title: "other",
		Status: StatusDone, Priority: PriorityLow, CompletedAt: &now,
		CreatedAt: now.Add(time.Second), UpdatedAt: now,
	}))

	got, err := repo.Get(ctx, owner, tk.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueAt)
	require.Nil(t, got.CompletedAt)

	_, err = repo.Get(ctx, stranger, tk.ID)
	require.ErrorIs(t, err, ErrNotFound)

	items, total, err := repo.List(ctx, owner, Filter{Priority: PriorityHigh, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, tk.ID, items[0].ID)

	items, total, err = repo.List(ctx, owner, Filter{Limit: 1, Offset: 0})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "other", items[0].Title, "newest first")

	counts, err := repo.CountByStatus(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, map[Status]int{StatusTodo: 1, StatusDone: 1}, counts)

	overdue, err := repo.CountOverdue(ctx, owner, now)
	require.NoError(t, err)
	require.Equal(t, 1, overdue)

	tk.Title = "renamed"
	tk.DueAt = nil
	require.NoError(t, repo.Update(ctx, tk, StatusTodo))

	tk.Status = StatusDone
	require.ErrorIs(t, repo.Update(ctx, tk, StatusInProgress), ErrConflict)
	require.NoError(t, repo.Update(ctx, tk, StatusTodo))
	require.ErrorIs(t, repo.Update(ctx, tk, StatusTodo), ErrConflict, "status already moved on")

	tk.OwnerID = stranger
	require.ErrorIs(t, repo.Update(ctx, tk, StatusDone), ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, stranger, tk.ID), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, owner, tk.ID))
	_, err = repo.Get(ctx, owner, tk.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
