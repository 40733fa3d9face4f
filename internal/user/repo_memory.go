package user

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    map[string]User{},
		byEmail: map[string]string{},
	}
}

func (r *MemoryRepo) Create(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	r.mu.RLock()
	all := make([]User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, id, name string, now time.Time) (User, error) {
	return r.update(id, func(u *User) {
		u.Name = name
		u.UpdatedAt = now
	})
}

func (r *MemoryRepo) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	_, err := r.update(id, func(u *User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = now
	})
	return err
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status Status, now time.Time) (User, error) {
	return r.update(id, func(u *User) {
		u.Status = status
		u.UpdatedAt = now
	})
}

func (r *MemoryRepo) update(id string, fn func(u *User)) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	fn(&u)
	r.byID[id] = u
	return u, nil
}
