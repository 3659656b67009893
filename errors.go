package goAuthz

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned by Register when the username exists.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrEmailTaken is returned by Register and UpdateProfile when the email exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAccountDisabled is returned when the user exists but is inactive.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUnauthenticated is returned when an access token is missing, invalid,
	// expired, revoked or names an unknown user.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidRefreshToken is returned by Refresh for any unusable refresh token.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrForbidden is returned when the user lacks the required permissions.
	ErrForbidden = errors.New("forbidden")
	// ErrLogoutFailed is returned when a token could not be revoked.
	ErrLogoutFailed = errors.New("logout failed")
	// ErrInternal hides unexpected backend failures from callers.
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned for malformed registration or profile input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLoginRateLimited is returned when too many failed logins were recorded.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRegistrationRateLimited is returned when an address registers too often.
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrUserNotFound is returned by the user administration methods.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorCode returns a stable, machine-readable code for err. Unknown errors
// map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrInvalidRefreshToken):
		return "invalid_refresh_token"
	case errors.Is(err, ErrLogoutFailed) && errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrLogoutFailed):
		return "logout_failed"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRegistrationRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrRoleNotFound):
		return "role_not_found"
	case errors.Is(err, ErrAdminUnsupported):
		return "not_supported"
	case errors.Is(err, ErrEngineNotReady):
		return "not_ready"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps err to the status code an HTTP adapter should send.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case "":
		return http.StatusOK
	case "invalid_credentials", "invalid_refresh_token", "unauthenticated":
		return http.StatusUnauthorized
	case "username_taken", "email_taken":
		return http.StatusConflict
	case "account_disabled", "forbidden":
		return http.StatusForbidden
	case "invalid_input":
		return http.StatusBadRequest
	case "rate_limited":
		return http.StatusTooManyRequests
	case "user_not_found", "role_not_found":
		return http.StatusNotFound
	case "not_supported":
		return http.StatusNotImplemented
	case "not_ready":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
