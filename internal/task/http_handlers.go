package task

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// Handlers serves /tasks for the authenticated owner.
type Handlers struct {
	Service *Service
}

type createRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=5000"`
	Priority    Priority   `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueAt       *time.Time `json:"due_at"`
}

type updateRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=5000"`
	Status      *Status    `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority    *Priority  `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueAt       *time.Time `json:"due_at"`
	ClearDueAt  bool       `json:"clear_due_at"`
}

type listQuery struct {
	Status   Status   `form:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority Priority `form:"priority" binding:"omitempty,oneof=low medium high"`
	Limit    int      `form:"limit" binding:"omitempty,gte=1,lte=100"`
	Offset   int      `form:"offset" binding:"omitempty,gte=0"`
}

func (h Handlers) Create(c *gin.Context) {
	owner, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	var req createRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.Create(c.Request.Context(), owner, NewTask{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueAt:       req.DueAt,
	})
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h Handlers) List(c *gin.Context) {
	owner, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	var q listQuery
	if !httpapi.BindQuery(c, &q) {
		return
	}
	page, err := h.Service.List(c.Request.Context(), owner, Filter{
		Status:   q.Status,
		Priority: q.Priority,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h Handlers) Get(c *gin.Context) {
	owner, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	t, err := h.Service.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) Update(c *gin.Context) {
	owner, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	var req updateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.Update(c.Request.Context(), owner, c.Param("id"), Patch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueAt:       req.DueAt,
		ClearDueAt:  req.ClearDueAt,
	})
	if err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) Delete(c *gin.Context) {
	owner, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	if err := h.Service.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		httpapi.Fail(c, mapError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) Summary(c *gin.Context) {
	owner, err := auth.UserID(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	s, err := h.Service.Summary(c.Request.Context(), owner)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(err, http.StatusNotFound, apperr.CodeNotFound, "task not found")
	case errors.Is(err, ErrConflict):
		return apperr.Wrap(err, http.StatusConflict, apperr.CodeConflict, "task was modified concurrently, retry")
	case errors.Is(err, ErrInvalidArgument):
		msg := strings.TrimPrefix(err.Error(), ErrInvalidArgument.Error()+": ")
		return apperr.Wrap(err, http.StatusBadRequest, apperr.CodeValidation, msg)
	default:
		return err
	}
}
