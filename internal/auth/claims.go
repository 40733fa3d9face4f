package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Subject is the user id. Email is carried by access tokens only.
type Claims struct {
	jwt.RegisteredClaims

	Email     string    `json:"email,omitempty"`
	TokenType TokenType `json:"token_type"`
}
