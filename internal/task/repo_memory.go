package task

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tasks: map[string]Task{}}
}

func (r *MemoryRepo) Create(ctx context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, ownerID, id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) List(ctx context.Context, ownerID string, f Filter) ([]Task, int, error) {
	r.mu.RLock()
	var matched []Task
	for _, t := range r.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		matched = append(matched, t)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []Task{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r *MemoryRepo) Update(ctx context.Context, t Task, prev Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[t.ID]
	if !ok || cur.OwnerID != t.OwnerID {
		return ErrNotFound
	}
	if cur.Status != prev {
		return ErrConflict
	}
	r.tasks[t.ID] = t
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, ownerID string) (map[Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[Status]int{}
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			out[t.Status]++
		}
	}
	return out, nil
}

func (r *MemoryRepo) CountOverdue(ctx context.Context, ownerID string, now time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && t.Overdue(now) {
			n++
		}
	}
	return n, nil
}
