package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goAuthz "github.com/MrEthical07/goAuthz"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":    {"abc", true},
		"bearer abc":    {"abc", true},
		"Bearer  abc  ": {"abc", true},
		"Bearer ":       {"", false},
		"Basic abc":     {"", false},
		"":              {"", false},
	}
	for header, want := range cases {
		got, ok := bearerToken(header)
		if got != want.token || ok != want.ok {
			t.Fatalf("bearerToken(%q): expected (%q, %v), got (%q, %v)", header, want.token, want.ok, got, ok)
		}
	}
}

func stubAuthorize(err error) goAuthz.AuthorizeFunc {
	return func(ctx context.Context, token string) (*goAuthz.AuthResult, error) {
		if err != nil {
			return nil, err
		}
		return &goAuthz.AuthResult{User: &goAuthz.User{ID: "u1", Username: token}}, nil
	}
}

func TestGuardFuncAllows(t *testing.T) {
	var seen *goAuthz.AuthResult
	h := GuardFunc(stubAuthorize(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthResultFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen == nil || seen.User.Username != "alice" {
		t.Fatalf("expected auth result in context, got %+v", seen)
	}
}

func TestGuardFuncRejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
		status int
		code   string
	}{
		{"missing header", "", nil, http.StatusUnauthorized, "unauthenticated"},
		{"unauthenticated", "Bearer x", goAuthz.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", "Bearer x", goAuthz.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"disabled", "Bearer x", goAuthz.ErrAccountDisabled, http.StatusForbidden, "account_disabled"},
		{"internal", "Bearer x", goAuthz.ErrInternal, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := GuardFunc(stubAuthorize(tt.err))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if called {
				t.Fatal("expected handler not to run")
			}
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, body.Code)
			}
			if tt.status == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("expected WWW-Authenticate challenge")
			}
		})
	}
}

func TestGuardNilEngine(t *testing.T) {
	h := Guard(nil, goAuthz.Policy{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestClientInfo(t *testing.T) {
	var ctx context.Context
	h := ClientInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := goAuthz.ClientIP(ctx); got != "192.0.2.10" {
		t.Fatalf("expected client ip 192.0.2.10, got %q", got)
	}
}
