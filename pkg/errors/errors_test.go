package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("boom")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "an internal error occurred", Status: 500, Err: inner}

	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "boom")
	assert.True(t, errors.Is(appErr, inner))
}

func TestConstructors_SentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
		code     string
	}{
		{"not found", NotFound("chat", "c-1"), ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid input", InvalidInput("bad"), ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{"unauthenticated", Unauthenticated("no session"), ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"forbidden", Forbidden("not a participant"), ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"token invalid", TokenInvalid("bad signature"), ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"token expired", TokenExpired("past exp"), ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"token revoked", TokenRevoked("invalidated"), ErrTokenRevoked, http.StatusUnauthorized, "TOKEN_REVOKED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))

			var appErr *AppError
			assert.True(t, errors.As(tt.err, &appErr))
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	// Wrapping must not lose the status mapping.
	err := fmt.Errorf("verify access token: %w", ErrTokenRevoked)
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("opaque")))
}
