package audit

import "time"

// Event is an append-only audit record of an account-level action.
//
// Invariants:
// - Events are never updated or deleted.
// - UserID may be empty when the actor is unknown (e.g. a failed login for an unknown email).
// - Audit writes are best-effort; callers never fail a request because of them.
type Event struct {
	ID     string    `json:"id" db:"id"`
	UserID string    `json:"user_id,omitempty" db:"user_id"`
	Type   EventType `json:"type" db:"type"`

	// IPAddress is the resolved client IP, when the event originates from a request.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	Message  string            `json:"message,omitempty" db:"message"`
	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventTokenRefreshed    EventType = "token_refreshed"
	EventUserStatusChanged EventType = "user_status_changed"
)

func (t EventType) Valid() bool {
	switch t {
	case EventUserRegistered, EventLoginSucceeded, EventLoginFailed, EventTokenRefreshed, EventUserStatusChanged:
		return true
	default:
		return false
	}
}
