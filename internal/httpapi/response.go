package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorBody is the only error shape the API writes.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Abort writes an error body and stops the handler chain.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: code, Message: message})
}

// Fail maps err to its public representation. Errors without an HTTP contract
// are logged and reported as a generic 500; their text never reaches the client.
func Fail(c *gin.Context, err error) {
	if coded, ok := apperr.As(err); ok {
		if coded.StatusCode() >= http.StatusInternalServerError {
			logger.FromGin(c).Error("request failed", "err", err)
		}
		Abort(c, coded.StatusCode(), coded.ErrorCode(), coded.PublicMessage())
		return
	}
	_ = c.Error(err)
	logger.FromGin(c).Error("unhandled error", "err", err)
	Abort(c, http.StatusInternalServerError, apperr.CodeInternal, "internal server error")
}

// BindJSON decodes and validates the request body. On failure it writes a
// 400 and returns false.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		Abort(c, http.StatusBadRequest, apperr.CodeValidation, bindMessage(err))
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		Abort(c, http.StatusBadRequest, apperr.CodeValidation, bindMessage(err))
		return false
	}
	return true
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	default:
		return field + " is invalid"
	}
}
