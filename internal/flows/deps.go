package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goAuthz/jwt"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login     LoginDeps
	Refresh   RefreshDeps
	Logout    LogoutDeps
	Register  RegisterDeps
	Authorize AuthorizeDeps
	Account   AccountDeps
}

// TokenCodec issues and verifies signed tokens.
type TokenCodec interface {
	Issue(subject string, kind jwt.Kind, ttl time.Duration) (string, time.Time, error)
	Verify(token string, expected jwt.Kind) (*jwt.Claims, error)
}

// RevocationRegistry records revoked tokens until they expire.
type RevocationRegistry interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	RevokeOnce(ctx context.Context, token string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// PasswordHasher hashes and verifies passwords under a concurrency bound.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	Equalize(ctx context.Context, plaintext string)
	NeedsUpgrade(digest string) (bool, error)
}

// LoginRateLimiter throttles failed logins.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	RecordLoginFailure(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username string) error
}

// RegistrationRateLimiter throttles account creation per client address.
type RegistrationRateLimiter interface {
	CheckRegistration(ctx context.Context, ip string) error
}

// PermissionCache memoizes resolved permission codes per user.
type PermissionCache interface {
	Get(userID string) ([]string, bool)
	Add(userID string, codes []string)
	Invalidate(userID string)
}

func remaining(exp *jwt.Claims, now time.Time) time.Duration {
	if exp == nil || exp.ExpiresAt == nil {
		return 0
	}
	return exp.ExpiresAt.Time.Sub(now)
}

func warnOrDiscard(warn func(string, ...any)) func(string, ...any) {
	if warn == nil {
		return func(string, ...any) {}
	}
	return warn
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
