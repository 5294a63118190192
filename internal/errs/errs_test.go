package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeRemote, http.StatusBadGateway},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{Code("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code).HTTP)
		})
	}
}

func TestWithHTTPOverridesDefault(t *testing.T) {
	e := Remote("upstream said no", WithHTTP(http.StatusTeapot))
	assert.Equal(t, http.StatusTeapot, e.HTTP)
	assert.Equal(t, http.StatusTeapot, StatusOf(e))
}

func TestErrorPrefersMessage(t *testing.T) {
	e := Validation("invalid role", WithField("role"))
	assert.Equal(t, "invalid role", e.Error())

	bare := New(CodeNotFound, WithField("id"))
	assert.Equal(t, `code=not_found field="id" http=404`, bare.Error())
}

func TestClassificationThroughWrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	e := Remote("fetch failed", WithCause(cause))
	wrapped := fmt.Errorf("load page: %w", e)

	require.True(t, IsRemote(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, http.StatusBadGateway, StatusOf(wrapped))
}

func TestStatusOfPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
}
