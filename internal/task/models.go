package task

import (
	"errors"
	"time"
)

// Task belongs to exactly one owner. CompletedAt is set iff Status is done.
type Task struct {
	ID          string `json:"id" db:"id"`
	OwnerID     string `json:"owner_id" db:"owner_id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	Status   Status   `json:"status" db:"status"`
	Priority Priority `json:"priority" db:"priority"`

	DueAt       *time.Time `json:"due_at,omitempty" db:"due_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Overdue reports whether t is still open past its due time.
func (t Task) Overdue(now time.Time) bool {
	return t.Status != StatusDone && t.DueAt != nil && t.DueAt.Before(now)
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type NewTask struct {
	Title       string
	Description string
	Priority    Priority
	DueAt       *time.Time
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	DueAt       *time.Time
	ClearDueAt  bool
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Status   Status
	Priority Priority
	Limit    int
	Offset   int
}

type Page struct {
	Items  []Task `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type Summary struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Overdue    int `json:"overdue"`
}

const (
	DefaultLimit   = 20
	MaxLimit       = 100
	MaxTitleLength = 200
	MaxDescLength  = 5000
)

var (
	ErrNotFound        = errors.New("task not found")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict means the task changed status between read and write.
	ErrConflict = errors.New("task was modified concurrently")
)
