package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"taskhub/internal/queue"

	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func jobOf(t *testing.T, name string, payload any) queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return queue.Job{ID: "j1", Name: name, Payload: raw}
}

func TestRegister_AddsAllJobs(t *testing.T) {
	reg := queue.NewRegistry()
	require.NoError(t, Handlers{Mailer: &recordingMailer{}}.Register(reg))
	require.Equal(t, []string{NameTaskCompleted, NameUserWelcome}, reg.Names())
}

func TestUserWelcome_SendsMail(t *testing.T) {
	m := &recordingMailer{}
	h := Handlers{Mailer: m}

	err := h.UserWelcome(context.Background(), jobOf(t, NameUserWelcome, UserWelcome{UserID: "u1", Email: "ada@example.com", Name: "Ada"}))
	require.NoError(t, err)
	require.Len(t, m.sent, 1)
	require.Equal(t, "ada@example.com", m.sent[0].To)
	require.Contains(t, m.sent[0].Body, "Ada")

	err = h.UserWelcome(context.Background(), jobOf(t, NameUserWelcome, UserWelcome{UserID: "u2"}))
	require.ErrorIs(t, err, ErrMissingRecipient)
}

func TestTaskCompleted_LooksUpOwner(t *testing.T) {
	m := &recordingMailer{}
	h := Handlers{
		Mailer: m,
		OwnerEmail: func(_ context.Context, id string) (string, error) {
			if id == "owner" {
				return "owner@example.com", nil
			}
			return "", errors.New("not found")
		},
	}
	done := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, h.TaskCompleted(context.Background(), jobOf(t, NameTaskCompleted, TaskCompleted{
		TaskID: "t1", OwnerID: "owner", Title: "ship it", CompletedAt: done,
	})))
	require.Len(t, m.sent, 1)
	require.Equal(t, "owner@example.com", m.sent[0].To)
	require.Contains(t, m.sent[0].Body, "2026-05-01T09:00:00Z")

	require.Error(t, h.TaskCompleted(context.Background(), jobOf(t, NameTaskCompleted, TaskCompleted{OwnerID: "ghost"})))
}

func TestMailerErrorPropagates(t *testing.T) {
	h := Handlers{Mailer: &recordingMailer{err: errors.New("down")}}
	err := h.UserWelcome(context.Background(), jobOf(t, NameUserWelcome, UserWelcome{Email: "a@b.c"}))
	require.Error(t, err)
}

func TestLogMailer_NeverFails(t *testing.T) {
	require.NoError(t, LogMailer{}.Send(context.Background(), Message{To: "x@y.z", Subject: "s"}))
}

func TestHandlers_MarkUnrecoverableFailuresPermanent(t *testing.T) {
	ctx := context.Background()
	h := Handlers{
		Mailer: &recordingMailer{},
		OwnerEmail: func(_ context.Context, id string) (string, error) {
			if id == "gone" {
				return "", ErrMissingRecipient
			}
			return "", errors.New("db timeout")
		},
	}

	err := h.UserWelcome(ctx, jobOf(t, NameUserWelcome, UserWelcome{UserID: "u1"}))
	require.True(t, queue.IsPermanent(err))

	garbled := queue.Job{ID: "j2", Name: NameTaskCompleted, Payload: json.RawMessage(`"not an object"`)}
	require.True(t, queue.IsPermanent(h.TaskCompleted(ctx, garbled)))

	err = h.TaskCompleted(ctx, jobOf(t, NameTaskCompleted, TaskCompleted{TaskID: "t1", OwnerID: "gone"}))
	require.True(t, queue.IsPermanent(err))
	require.ErrorIs(t, err, ErrMissingRecipient)

	err = h.TaskCompleted(ctx, jobOf(t, NameTaskCompleted, TaskCompleted{TaskID: "t1", OwnerID: "other"}))
	require.Error(t, err)
	require.False(t, queue.IsPermanent(err), "transient lookup failures are retried")
}
