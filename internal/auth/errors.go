package auth

import (
	"errors"
	"net/http"

	"taskhub/internal/apperr"
)

// TokenErrorKind is the closed set of reasons a token can be refused.
type TokenErrorKind string

const (
	KindInvalidToken   TokenErrorKind = "invalid_token"
	KindTokenExpired   TokenErrorKind = "token_expired"
	KindInvalidIssuer  TokenErrorKind = "invalid_issuer"
	KindWrongTokenType TokenErrorKind = "wrong_token_type"
)

var kindMessages = map[TokenErrorKind]string{
	KindInvalidToken:   "token is invalid",
	KindTokenExpired:   "token has expired",
	KindInvalidIssuer:  "token issuer is not accepted",
	KindWrongTokenType: "token type is not accepted here",
}

// TokenError is returned by every verification failure.
// Match with errors.Is against the Err* sentinels below.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

var (
	ErrInvalidToken   = &TokenError{Kind: KindInvalidToken}
	ErrTokenExpired   = &TokenError{Kind: KindTokenExpired}
	ErrInvalidIssuer  = &TokenError{Kind: KindInvalidIssuer}
	ErrWrongTokenType = &TokenError{Kind: KindWrongTokenType}
)

// ErrNoIdentity means the authentication middleware did not run or did not attach an identity.
var ErrNoIdentity = errors.New("auth: no identity in context")

func newTokenError(kind TokenErrorKind, cause error) *TokenError {
	return &TokenError{Kind: kind, Err: cause}
}

func (e *TokenError) Error() string {
	msg := kindMessages[e.Kind]
	if e.Err == nil {
		return "auth: " + msg
	}
	return "auth: " + msg + ": " + e.Err.Error()
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is matches on kind only, so wrapped causes do not affect errors.Is checks.
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	return ok && t.Kind == e.Kind
}

// Every token failure, expired included, is reported to clients as INVALID_TOKEN.
func (e *TokenError) StatusCode() int       { return http.StatusUnauthorized }
func (e *TokenError) ErrorCode() string     { return apperr.CodeInvalidToken }
func (e *TokenError) PublicMessage() string { return kindMessages[e.Kind] }
