// Package apperr carries the HTTP-facing contract of a failure: status,
// stable code and a message that is safe to show to clients.
package apperr

import (
	"errors"
	"net/http"
)

// Stable error codes. Clients match on these; do not rename.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountBanned      = "ACCOUNT_BANNED"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeValidation         = "VALIDATION_FAILED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL"
)

// Coded is implemented by errors that know their HTTP representation.
type Coded interface {
	error
	StatusCode() int
	ErrorCode() string
	PublicMessage() string
}

type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) StatusCode() int       { return e.Status }
func (e *Error) ErrorCode() string     { return e.Code }
func (e *Error) PublicMessage() string { return e.Message }

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap attaches an HTTP contract to err while keeping it inspectable via errors.Is.
func Wrap(err error, status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, CodeNotFound, message)
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, CodeValidation, message)
}

// As returns the Coded view of err, if any error in its chain has one.
func As(err error) (Coded, bool) {
	var c Coded
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}
