package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

var errDomain = errors.New("domain failure")

func TestWrap_KeepsCauseInspectable(t *testing.T) {
	err := Wrap(errDomain, http.StatusConflict, CodeConflict, "already exists")

	require.ErrorIs(t, err, errDomain)
	require.Equal(t, http.StatusConflict, err.StatusCode())
	require.Equal(t, CodeConflict, err.ErrorCode())
	require.Equal(t, "already exists", err.PublicMessage())
}

func TestAs_FindsCodedThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("task not found"))

	c, ok := As(wrapped)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, c.StatusCode())
	require.Equal(t, CodeNotFound, c.ErrorCode())

	_, ok = As(errDomain)
	require.False(t, ok)
}
