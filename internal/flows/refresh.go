package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/store"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureInvalidToken
	RefreshFailureRevoked
	RefreshFailureReuse
	RefreshFailureUnknownSubject
	RefreshFailureDisabled
	RefreshFailureInternal
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure         RefreshFailureKind
	Err             error
	User            *store.User
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Store        store.CredentialStore
	Tokens       TokenCodec
	Revocations  RevocationRegistry
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	RevokeRotate bool
	Now          func() time.Time
	Warn         func(string, ...any)
}

// RunRefresh validates a refresh token and issues a new pair. With
// RevokeRotate the presented token is consumed atomically first, so two
// concurrent refreshes with the same token cannot both succeed.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	now := nowOrDefault(deps.Now)
	warn := warnOrDiscard(deps.Warn)

	claims, err := deps.Tokens.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureInvalidToken, Err: err}
	}

	// A failed lookup under fail-closed reports revoked=true and is treated
	// exactly like a revoked token, as in RunAuthorize.
	revoked, err := deps.Revocations.IsRevoked(ctx, refreshToken)
	if err != nil && !revoked {
		warn("goAuthz: revocation lookup failed open", "error", err)
	}
	if revoked {
		return RefreshResult{Failure: RefreshFailureRevoked, Err: err}
	}

	user, err := deps.Store.FindUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureUnknownSubject}
		}
		return RefreshResult{Failure: RefreshFailureInternal, Err: err}
	}
	if !user.IsActive {
		return RefreshResult{Failure: RefreshFailureDisabled, User: user}
	}

	if deps.RevokeRotate {
		won, err := deps.Revocations.RevokeOnce(ctx, refreshToken, remaining(claims, now()))
		if err != nil {
			return RefreshResult{Failure: RefreshFailureInternal, Err: err, User: user}
		}
		if !won {
			return RefreshResult{Failure: RefreshFailureReuse, User: user}
		}
	}

	access, exp, err := deps.Tokens.Issue(user.Username, jwt.KindAccess, deps.AccessTTL)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureInternal, Err: err, User: user}
	}
	next, _, err := deps.Tokens.Issue(user.Username, jwt.KindRefresh, deps.RefreshTTL)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureInternal, Err: err, User: user}
	}

	return RefreshResult{
		User:            user,
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshToken:    next,
	}
}
