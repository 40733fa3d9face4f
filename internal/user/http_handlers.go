package user

import (
	"errors"
	"net/http"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// Handlers exposes Service over HTTP. Authentication and role checks are
// applied by the router; handlers only read the identity from context.
type Handlers struct {
	Service *Service
}

type updateProfileRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

type setStatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=active inactive banned"`
}

type listQuery struct {
	Limit  int `form:"limit" binding:"omitempty,gte=1,lte=100"`
	Offset int `form:"offset" binding:"omitempty,gte=0"`
}

type listResponse struct {
	Items  []User `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (h Handlers) Me(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	u, err := h.Service.Me(c.Request.Context(), uid)
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) UpdateMe(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	var req updateProfileRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	u, err := h.Service.UpdateProfile(c.Request.Context(), uid, req.Name)
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) ChangePassword(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	var req changePasswordRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	if err := h.Service.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Profile serves GET /users/:id behind optional authentication.
func (h Handlers) Profile(c *gin.Context) {
	var viewer string
	if id, ok := auth.IdentityFrom(c.Request.Context()); ok {
		viewer = id.Subject
	}
	p, err := h.Service.PublicProfile(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) List(c *gin.Context) {
	var q listQuery
	if !httpapi.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	items, total, err := h.Service.List(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, listResponse{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset})
}

func (h Handlers) SetStatus(c *gin.Context) {
	actor, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	var req setStatusRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	u, err := h.Service.SetStatus(c.Request.Context(), actor, c.Param("id"), req.Status, c.ClientIP())
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, u)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(err, http.StatusNotFound, apperr.CodeNotFound, "user not found")
	case errors.Is(err, ErrEmailTaken):
		return apperr.Wrap(err, http.StatusConflict, apperr.CodeEmailTaken, "email is already registered")
	case errors.Is(err, ErrWrongPassword):
		return apperr.Wrap(err, http.StatusUnauthorized, apperr.CodeInvalidCredentials, "current password is incorrect")
	case errors.Is(err, ErrSelfStatusChange):
		return apperr.Wrap(err, http.StatusForbidden, apperr.CodeForbidden, "cannot change your own status")
	case errors.Is(err, ErrInvalidArgument):
		return apperr.Wrap(err, http.StatusBadRequest, apperr.CodeValidation, publicReason(err))
	default:
		return err
	}
}

// MapError exposes the package's HTTP mapping to callers that reuse the service.
func MapError(err error) error { return mapError(err) }

func publicReason(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidArgument.Error()+": ")
}
