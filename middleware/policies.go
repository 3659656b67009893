package middleware

import (
	"net/http"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/permission"
)

// RequireAuthenticated admits any active user with a valid access token.
func RequireAuthenticated(engine *goAuthz.Engine) func(http.Handler) http.Handler {
	return Guard(engine, permission.Authenticated())
}

// RequireAny admits users holding at least one of perms.
func RequireAny(engine *goAuthz.Engine, perms ...string) func(http.Handler) http.Handler {
	return Guard(engine, permission.Any(perms...))
}

// RequireAll admits users holding every one of perms.
func RequireAll(engine *goAuthz.Engine, perms ...string) func(http.Handler) http.Handler {
	return Guard(engine, permission.All(perms...))
}
