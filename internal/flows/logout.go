package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthz/jwt"
)

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureUnauthenticated
	LogoutFailureStore
)

// LogoutResult reports the outcome of revoking an access token.
type LogoutResult struct {
	Failure        LogoutFailureKind
	Err            error
	Subject        string
	AlreadyExpired bool
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Tokens      TokenCodec
	Revocations RevocationRegistry
	Now         func() time.Time
}

// RunLogout revokes tokenStr for the rest of its lifetime. A token that has
// already expired needs no entry and is reported as success.
func RunLogout(ctx context.Context, tokenStr string, deps LogoutDeps) LogoutResult {
	now := nowOrDefault(deps.Now)

	claims, err := deps.Tokens.Verify(tokenStr, jwt.KindAccess)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return LogoutResult{AlreadyExpired: true}
		}
		return LogoutResult{Failure: LogoutFailureUnauthenticated, Err: err}
	}

	ttl := remaining(claims, now())
	if ttl <= 0 {
		return LogoutResult{Subject: claims.Subject, AlreadyExpired: true}
	}

	if err := deps.Revocations.Revoke(ctx, tokenStr, ttl); err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err, Subject: claims.Subject}
	}
	return LogoutResult{Subject: claims.Subject}
}
