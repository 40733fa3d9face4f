package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"taskhub/internal/jobs"
	"taskhub/pkg/logger"

	"github.com/google/uuid"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}

type Options struct {
	Jobs Enqueuer
	// OnCreated is called once per created task.
	OnCreated func()
}

type Service struct {
	repo      Repository
	jobs      Enqueuer
	onCreated func()
	clock     func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	onCreated := opts.OnCreated
	if onCreated == nil {
		onCreated = func() {}
	}
	return &Service{repo: repo, jobs: opts.Jobs, onCreated: onCreated, clock: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", invalid("title must be at most %d characters", MaxTitleLength)
	}
	return title, nil
}

func checkDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescLength {
		return invalid("description must be at most %d characters", MaxDescLength)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, ownerID string, in NewTask) (Task, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return Task{}, err
	}
	if err := checkDescription(in.Description); err != nil {
		return Task{}, err
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return Task{}, invalid("priority must be one of: low medium high")
	}

	now := s.clock().UTC()
	t := Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: in.Description,
		Status:      StatusTodo,
		Priority:    in.Priority,
		DueAt:       utc(in.DueAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return Task{}, err
	}
	s.onCreated()
	return t, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (Task, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID string, f Filter) (Page, error) {
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 1 || f.Limit > MaxLimit {
		return Page{}, invalid("limit must be between 1 and %d", MaxLimit)
	}
	if f.Offset < 0 {
		return Page{}, invalid("offset must be >= 0")
	}
	if f.Status != "" && !f.Status.Valid() {
		return Page{}, invalid("status must be one of: todo in_progress done")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return Page{}, invalid("priority must be one of: low medium high")
	}

	items, total, err := s.repo.List(ctx, ownerID, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// maxUpdateAttempts bounds retries when a concurrent write changed the status.
const maxUpdateAttempts = 3

// Update applies p. Moving into done stamps CompletedAt and queues a
// task.completed job; moving out of done clears it. The write only lands
// if the status is still the one read, so a completion is reported once.
func (s *Service) Update(ctx context.Context, ownerID, id string, p Patch) (Task, error) {
	for attempt := 1; ; attempt++ {
		t, err := s.repo.Get(ctx, ownerID, id)
		if err != nil {
			return Task{}, err
		}
		prev := t.Status

		completed, err := s.apply(&t, p)
		if err != nil {
			return Task{}, err
		}

		err = s.repo.Update(ctx, t, prev)
		if errors.Is(err, ErrConflict) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return Task{}, err
		}
		if completed {
			s.enqueueCompleted(ctx, t)
		}
		return t, nil
	}
}

// apply mutates t in place and reports whether t just moved into done.
func (s *Service) apply(t *Task, p Patch) (bool, error) {
	wasDone := t.Status == StatusDone

	if p.Title != nil {
		title, err := normalizeTitle(*p.Title)
		if err != nil {
			return false, err
		}
		t.Title = title
	}
	if p.Description != nil {
		if err := checkDescription(*p.Description); err != nil {
			return false, err
		}
		t.Description = *p.Description
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return false, invalid("priority must be one of: low medium high")
		}
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return false, invalid("status must be one of: todo in_progress done")
		}
		t.Status = *p.Status
	}
	switch {
	case p.ClearDueAt:
		t.DueAt = nil
	case p.DueAt != nil:
		t.DueAt = utc(p.DueAt)
	}

	now := s.clock().UTC()
	completed := !wasDone && t.Status == StatusDone
	switch {
	case completed:
		t.CompletedAt = &now
	case t.Status != StatusDone:
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
	return completed, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// Summary counts ownerID's tasks per status plus those overdue.
func (s *Service) Summary(ctx context.Context, ownerID string) (Summary, error) {
	counts, err := s.repo.CountByStatus(ctx, ownerID)
	if err != nil {
		return Summary{}, err
	}
	overdue, err := s.repo.CountOverdue(ctx, ownerID, s.clock().UTC())
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		Todo:       counts[StatusTodo],
		InProgress: counts[StatusInProgress],
		Done:       counts[StatusDone],
		Overdue:    overdue,
	}
	out.Total = out.Todo + out.InProgress + out.Done
	return out, nil
}

func (s *Service) enqueueCompleted(ctx context.Context, t Task) {
	if s.jobs == nil {
		return
	}
	_, err := s.jobs.Enqueue(ctx, jobs.NameTaskCompleted, jobs.TaskCompleted{
		TaskID:      t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		CompletedAt: *t.CompletedAt,
	})
	if err != nil {
		logger.From(ctx).Warn("enqueue failed", "job", jobs.NameTaskCompleted, "task_id", t.ID, "err", err)
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
