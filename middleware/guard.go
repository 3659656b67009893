package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	goAuthz "github.com/MrEthical07/goAuthz"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by a guard.
func AuthResultFromContext(ctx context.Context) (*goAuthz.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goAuthz.AuthResult)
	return res, ok
}

// Guard protects the wrapped handler with policy. It panics when policy
// names a permission the engine does not know, so misconfigured routes fail
// at startup.
func Guard(engine *goAuthz.Engine, policy goAuthz.Policy) func(http.Handler) http.Handler {
	if engine == nil {
		return GuardFunc(nil)
	}
	return GuardFunc(engine.MustGuard(policy))
}

// GuardFunc adapts a prebuilt AuthorizeFunc into middleware. Rejections are
// written with WriteError.
func GuardFunc(authorize goAuthz.AuthorizeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authorize == nil {
				WriteError(w, goAuthz.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, goAuthz.ErrUnauthenticated)
				return
			}

			res, err := authorize(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientInfo records the caller address and user agent on the request
// context so throttling and audit events can see them. RemoteAddr is used
// as is; put a trusted proxy middleware in front when needed.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := goAuthz.WithClientIP(r.Context(), ip)
		ctx = goAuthz.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(r *http.Request) (string, bool) {
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError renders err as {"code": ..., "message": ...} with the status
// from goAuthz.HTTPStatus. Internal errors never expose their detail.
func WriteError(w http.ResponseWriter, err error) {
	status := goAuthz.HTTPStatus(err)
	code := goAuthz.ErrorCode(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = strings.ReplaceAll(code, "_", " ")
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="goauthz"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: msg})
}
