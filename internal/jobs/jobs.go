// Package jobs defines the background jobs the API enqueues and the worker runs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/queue"
	"taskhub/pkg/logger"
)

const (
	NameUserWelcome   = "user.welcome"
	NameTaskCompleted = "task.completed"
)

type UserWelcome struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type TaskCompleted struct {
	TaskID      string    `json:"task_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completed_at"`
}

// Message is an outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers notifications. Returning an error makes the job retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the structured log instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	l := m.Logger
	if l == nil {
		l = logger.From(ctx)
	}
	l.Info("mail",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	return nil
}

// EmailLookup resolves an owner's address for task notifications.
// It returns ErrMissingRecipient when the owner no longer exists.
type EmailLookup func(ctx context.Context, userID string) (email string, err error)

var ErrMissingRecipient = errors.New("jobs: missing recipient")

// Handlers holds the dependencies of every job.
type Handlers struct {
	Mailer     Mailer
	OwnerEmail EmailLookup
}

// Register adds every job handler to reg.
func (h Handlers) Register(reg *queue.Registry) error {
	if err := reg.Register(NameUserWelcome, h.UserWelcome); err != nil {
		return err
	}
	return reg.Register(NameTaskCompleted, h.TaskCompleted)
}

func (h Handlers) UserWelcome(ctx context.Context, job queue.Job) error {
	var p UserWelcome
	if err := job.Decode(&p); err != nil {
		return queue.Permanent(fmt.Errorf("decode %s: %w", job.Name, err))
	}
	if p.Email == "" {
		return queue.Permanent(ErrMissingRecipient)
	}
	name := p.Name
	if name == "" {
		name = "there"
	}
	return h.Mailer.Send(ctx, Message{
		To:      p.Email,
		Subject: "Welcome to TaskHub",
		Body:    fmt.Sprintf("Hi %s, your account is ready.", name),
	})
}

func (h Handlers) TaskCompleted(ctx context.Context, job queue.Job) error {
	var p TaskCompleted
	if err := job.Decode(&p); err != nil {
		return queue.Permanent(fmt.Errorf("decode %s: %w", job.Name, err))
	}
	if h.OwnerEmail == nil {
		return queue.Permanent(ErrMissingRecipient)
	}
	to, err := h.OwnerEmail(ctx, p.OwnerID)
	if errors.Is(err, ErrMissingRecipient) {
		return queue.Permanent(fmt.Errorf("lookup owner %s: %w", p.OwnerID, err))
	}
	if err != nil {
		return fmt.Errorf("lookup owner %s: %w", p.OwnerID, err)
	}
	return h.Mailer.Send(ctx, Message{
		To:      to,
		Subject: "Task completed",
		Body:    fmt.Sprintf("%q was marked done at %s.", p.Title, p.CompletedAt.UTC().Format(time.RFC3339)),
	})
}
