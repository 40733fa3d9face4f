package user

import (
	"errors"
	"time"
)

// User is an account. Email is stored lowercased and is unique.
// PasswordHash is an argon2id PHC string and never leaves the service.
type User struct {
	ID           string `json:"id" db:"id"`
	Email        string `json:"email" db:"email"`
	Name         string `json:"name" db:"name"`
	PasswordHash string `json:"-" db:"password_hash"`

	Role   Role   `json:"role" db:"role"`
	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Status gates what an authenticated account may do.
// inactive accounts can sign in and read, but not mutate; banned accounts cannot sign in.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBanned:
		return true
	default:
		return false
	}
}

// Profile is the public view of a user. Email is only filled for the owner.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type NewUser struct {
	Email    string
	Name     string
	Password string
}

var (
	ErrNotFound         = errors.New("user not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrWrongPassword    = errors.New("current password does not match")
	ErrSelfStatusChange = errors.New("cannot change own status")
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MaxNameLength     = 100
)
