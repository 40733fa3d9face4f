package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taskhub/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records account-level audit events.
// Audit is internal-only and never exposed through the public API.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if !e.Type.Valid() {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and logs instead of returning on failure.
// Use it from request paths where audit must not change the outcome.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed",
			slog.String("type", string(e.Type)),
			slog.String("user_id", e.UserID),
			slog.String("err", err.Error()),
		)
	}
}

// LogStatusChange records an admin changing another account's status.
func (s *Service) LogStatusChange(ctx context.Context, actorID, targetID, ip, from, to string) {
	s.Record(ctx, Event{
		UserID:    targetID,
		Type:      EventUserStatusChanged,
		IPAddress: ip,
		Message:   "status changed",
		Metadata: map[string]string{
			"actor_id": actorID,
			"from":     from,
			"to":       to,
		},
	})
}
