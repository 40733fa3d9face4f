package auth

import (
	"errors"
	"net/http"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/httpapi"
	"taskhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"

// Enforcer modes, also used as metric labels.
const (
	ModeRequired = "required"
	ModeOptional = "optional"
)

// Verification outcomes reported to the observer besides the TokenErrorKind values.
const (
	ResultOK        = "ok"
	ResultMissing   = "missing"
	ResultMalformed = "malformed"
)

var (
	errMissingBearer   = errors.New("missing bearer token")
	errMalformedBearer = errors.New("authorization header must be: Bearer <token>")
)

// AccessVerifier is the part of Manager the middleware needs.
type AccessVerifier interface {
	VerifyAccessToken(tokenString string) (Claims, error)
}

// VerificationObserver receives one outcome per request inspected by an Enforcer.
type VerificationObserver func(mode, result string)

// Enforcer turns bearer tokens into a request Identity.
// It does not perform role or account-status checks; those belong to internal/rbac.
type Enforcer struct {
	verifier AccessVerifier
	observe  VerificationObserver
}

func NewEnforcer(v AccessVerifier, observe VerificationObserver) *Enforcer {
	if observe == nil {
		observe = func(string, string) {}
	}
	return &Enforcer{verifier: v, observe: observe}
}

// RequireAccessToken rejects with 401 unless a valid access token is presented.
func RequireAccessToken(v AccessVerifier) gin.HandlerFunc {
	return NewEnforcer(v, nil).Require()
}

// OptionalAccessToken attaches an identity when a valid access token is presented
// and lets every other request through anonymously.
func OptionalAccessToken(v AccessVerifier) gin.HandlerFunc {
	return NewEnforcer(v, nil).Optional()
}

func (e *Enforcer) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader(authorizationHeader))
		if err != nil {
			e.observe(ModeRequired, headerResult(err))
			httpapi.Abort(c, http.StatusUnauthorized, apperr.CodeUnauthorized, err.Error())
			return
		}

		claims, err := e.verifier.VerifyAccessToken(raw)
		if err != nil {
			e.observe(ModeRequired, failureResult(err))
			logger.FromGin(c).Debug("access token rejected", "err", err)
			httpapi.Fail(c, asTokenError(err))
			return
		}

		e.observe(ModeRequired, ResultOK)
		attach(c, claims)
		c.Next()
	}
}

func (e *Enforcer) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader(authorizationHeader))
		if err != nil {
			e.observe(ModeOptional, headerResult(err))
			c.Next()
			return
		}

		claims, err := e.verifier.VerifyAccessToken(raw)
		if err != nil {
			e.observe(ModeOptional, failureResult(err))
			logger.FromGin(c).Debug("optional access token ignored", "err", err)
			c.Next()
			return
		}

		e.observe(ModeOptional, ResultOK)
		attach(c, claims)
		c.Next()
	}
}

func attach(c *gin.Context, claims Claims) {
	ctx := WithIdentity(c.Request.Context(), Identity{Subject: claims.Subject, Email: claims.Email})
	c.Request = c.Request.WithContext(ctx)

	// Also store on gin context for handler convenience.
	c.Set("user_id", claims.Subject)
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingBearer
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedBearer
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", errMalformedBearer
	}
	return token, nil
}

func headerResult(err error) string {
	if errors.Is(err, errMissingBearer) {
		return ResultMissing
	}
	return ResultMalformed
}

func failureResult(err error) string {
	return string(asTokenError(err).Kind)
}

// asTokenError keeps the 401 contract even for verifiers that return foreign errors.
func asTokenError(err error) *TokenError {
	var te *TokenError
	if errors.As(err, &te) {
		return te
	}
	return newTokenError(KindInvalidToken, err)
}
