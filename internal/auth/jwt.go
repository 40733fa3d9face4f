package auth

import (
	"errors"
	"fmt"
	"time"

	"taskhub/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Manager issues and verifies HS256 tokens bound to one issuer.
// It holds only read-only configuration and is safe for concurrent use.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.JWTIssuer == "" {
		return nil, errors.New("JWT_ISSUER is required")
	}
	if err := config.CheckTokenTTL("access token TTL", cfg.AccessTokenTTL); err != nil {
		return nil, err
	}
	if err := config.CheckTokenTTL("refresh token TTL", cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}

	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		clock:      time.Now,
	}, nil
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ExpiresIn is the access token lifetime in whole seconds, as returned to clients.
func (p TokenPair) ExpiresIn(now time.Time) int64 {
	secs := int64(p.AccessExpiresAt.Sub(now) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

/* ===================== ISSUE TOKENS ===================== */

func (m *Manager) IssueAccessToken(subject, email string) (string, time.Time, error) {
	return m.issue(TokenTypeAccess, subject, email, m.accessTTL)
}

// IssueRefreshToken never embeds the email; refresh tokens identify the subject only.
func (m *Manager) IssueRefreshToken(subject string) (string, time.Time, error) {
	return m.issue(TokenTypeRefresh, subject, "", m.refreshTTL)
}

func (m *Manager) IssuePair(subject, email string) (TokenPair, error) {
	access, accessExp, err := m.IssueAccessToken(subject, email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := m.IssueRefreshToken(subject)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

/* ===================== VERIFY TOKEN ===================== */

// Verify checks, in order: signature and algorithm, expiry, issuer, subject.
// Failures are *TokenError values. An expired token is reported as
// KindTokenExpired even when its issuer or subject is also wrong.
func (m *Manager) Verify(tokenString string) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	// jwt/v5 verifies the signature before it validates any claim.
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, newTokenError(KindTokenExpired, err)
		}
		return Claims{}, newTokenError(KindInvalidToken, err)
	}

	if claims.Issuer != m.issuer {
		return Claims{}, newTokenError(KindInvalidIssuer, fmt.Errorf("issuer %q", claims.Issuer))
	}
	if claims.Subject == "" {
		return Claims{}, newTokenError(KindInvalidToken, errors.New("subject missing"))
	}

	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenString string) (Claims, error) {
	return m.verifyType(tokenString, TokenTypeAccess)
}

func (m *Manager) VerifyRefreshToken(tokenString string) (Claims, error) {
	return m.verifyType(tokenString, TokenTypeRefresh)
}

// ExtractSubject verifies the token (any type) and returns its subject.
func (m *Manager) ExtractSubject(tokenString string) (string, error) {
	claims, err := m.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *Manager) verifyType(tokenString string, expected TokenType) (Claims, error) {
	claims, err := m.Verify(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != expected {
		return Claims{}, newTokenError(KindWrongTokenType, fmt.Errorf("want %s, got %q", expected, claims.TokenType))
	}
	return claims, nil
}

/* ===================== INTERNAL ISSUE ===================== */

func (m *Manager) issue(tokenType TokenType, subject, email string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}

	issuedAt := jwt.NewNumericDate(m.clock())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(ttl))

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
		Email:     email,
		TokenType: tokenType,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign %s token: %w", tokenType, err)
	}
	return signed, expiresAt.Time, nil
}
