package login

import (
	"errors"
	"net/http"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/httpapi"
	"taskhub/internal/user"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
	Now     func() time.Time
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type sessionResponse struct {
	User         user.User `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) respond(c *gin.Context, status int, s Session) {
	c.JSON(status, sessionResponse{
		User:         s.User,
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.Tokens.ExpiresIn(h.now()),
	})
}

func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := WithClientIP(c.Request.Context(), c.ClientIP())
	s, err := h.Service.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	h.respond(c, http.StatusCreated, s)
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := WithClientIP(c.Request.Context(), c.ClientIP())
	s, err := h.Service.Login(ctx, req.Email, req.Password)
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	h.respond(c, http.StatusOK, s)
}

func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ctx := WithClientIP(c.Request.Context(), c.ClientIP())
	s, err := h.Service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	h.respond(c, http.StatusOK, s)
}

// Me echoes the identity resolved from the access token.
func (h Handlers) Me(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		httpapi.Fail(c, auth.ErrNoIdentity)
		return
	}
	c.JSON(http.StatusOK, meResponse{UserID: id.Subject, Email: id.Email})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return apperr.Wrap(err, http.StatusUnauthorized, apperr.CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, ErrAccountBanned):
		return apperr.Wrap(err, http.StatusForbidden, apperr.CodeAccountBanned, "account is banned")
	default:
		return user.MapError(err)
	}
}
