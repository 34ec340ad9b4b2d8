package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors_StatusAndSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		sentinel error
	}{
		{"validation", Validation("email is required"), http.StatusBadRequest, ErrValidation},
		{"not found", NotFound("user not found"), http.StatusNotFound, ErrNotFound},
		{"precondition", Precondition("email not yet confirmed"), http.StatusBadRequest, ErrPrecondition},
		{"auth failed", AuthFailed("invalid login"), http.StatusBadRequest, ErrAuthFailed},
		{"conflict", Conflict("user already registered"), http.StatusBadRequest, ErrConflict},
		{"operation", Operation("could not set password"), http.StatusBadRequest, ErrOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestAuthFailed_IsNot401(t *testing.T) {
	// Credential failures must not leak which check rejected the request.
	assert.Equal(t, http.StatusBadRequest, AuthFailed("invalid login").Status)
}

func TestInternal_RedactsMessage(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause)

	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "an unexpected error occurred", err.Message)
	assert.True(t, errors.Is(err, cause))
}

func TestHTTPStatus_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("get user: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrOperation, "complete registration")
	assert.True(t, errors.Is(err, ErrOperation))
	assert.Contains(t, err.Error(), "complete registration")
}
