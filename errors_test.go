package goAuthz

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodeAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{nil, "", http.StatusOK},
		{ErrInvalidCredentials, "invalid_credentials", http.StatusUnauthorized},
		{ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized},
		{ErrInvalidRefreshToken, "invalid_refresh_token", http.StatusUnauthorized},
		{ErrUsernameTaken, "username_taken", http.StatusConflict},
		{ErrEmailTaken, "email_taken", http.StatusConflict},
		{ErrAccountDisabled, "account_disabled", http.StatusForbidden},
		{ErrForbidden, "forbidden", http.StatusForbidden},
		{errors.Join(ErrInvalidInput, errors.New("bad email")), "invalid_input", http.StatusBadRequest},
		{ErrLoginRateLimited, "rate_limited", http.StatusTooManyRequests},
		{ErrRegistrationRateLimited, "rate_limited", http.StatusTooManyRequests},
		{ErrUserNotFound, "user_not_found", http.StatusNotFound},
		{ErrAdminUnsupported, "not_supported", http.StatusNotImplemented},
		{ErrEngineNotReady, "not_ready", http.StatusServiceUnavailable},
		{ErrLogoutFailed, "logout_failed", http.StatusInternalServerError},
		{errors.Join(ErrLogoutFailed, ErrUnauthenticated), "unauthenticated", http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", ErrInternal), "internal_error", http.StatusInternalServerError},
		{errors.New("boom"), "internal_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.code {
			t.Fatalf("ErrorCode(%v): expected %q, got %q", tt.err, tt.code, got)
		}
		if got := HTTPStatus(tt.err); got != tt.status {
			t.Fatalf("HTTPStatus(%v): expected %d, got %d", tt.err, tt.status, got)
		}
	}
}
