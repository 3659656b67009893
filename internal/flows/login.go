package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthz/internal/rate"
	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/store"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureDisabled
	LoginFailureInternal
)

// LoginResult carries the issued tokens or failure metadata.
type LoginResult struct {
	Failure         LoginFailureKind
	Err             error
	Reason          string
	User            *store.User
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	Rehashed        bool
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Store          store.CredentialStore
	Hasher         PasswordHasher
	Tokens         TokenCodec
	Limiter        LoginRateLimiter
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	UpgradeOnLogin bool

	ClientIPFromContext func(context.Context) string
	Warn                func(string, ...any)
}

// RunLogin authenticates username/password and issues an access token, plus
// a refresh token when remember is set. Unknown users and wrong passwords
// produce the same failure.
func RunLogin(ctx context.Context, username, password string, remember bool, deps LoginDeps) LoginResult {
	username = strings.TrimSpace(username)
	warn := warnOrDiscard(deps.Warn)
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, username, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, Reason: "rate_limited"}
			}
			warn("goAuthz: login limiter unavailable", "error", err)
		}
	}

	fail := func(reason string, err error) LoginResult {
		if deps.Limiter != nil {
			if rerr := deps.Limiter.RecordLoginFailure(ctx, username, ip); rerr != nil {
				warn("goAuthz: login failure not recorded", "error", rerr)
			}
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err, Reason: reason}
	}

	if username == "" || password == "" {
		deps.Hasher.Equalize(ctx, password)
		return fail("empty_credentials", nil)
	}

	user, err := deps.Store.FindUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return LoginResult{Failure: LoginFailureInternal, Err: err, Reason: "store_error"}
		}
		deps.Hasher.Equalize(ctx, password)
		return fail("user_not_found", nil)
	}

	ok, err := deps.Hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil && ctx.Err() != nil {
		return LoginResult{Failure: LoginFailureInternal, Err: err, Reason: "canceled"}
	}
	if err != nil || !ok {
		if err != nil {
			warn("goAuthz: stored digest rejected", "user_id", user.ID, "error", err)
		}
		result := fail("password_mismatch", err)
		result.User = user
		return result
	}

	if !user.IsActive {
		return LoginResult{Failure: LoginFailureDisabled, Reason: "inactive", User: user}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, username); err != nil {
			warn("goAuthz: login limiter reset failed", "error", err)
		}
	}

	result := LoginResult{User: user}
	if deps.UpgradeOnLogin {
		result.Rehashed = upgradeDigest(ctx, user, password, deps)
	}

	access, exp, err := deps.Tokens.Issue(user.Username, jwt.KindAccess, deps.AccessTTL)
	if err != nil {
		return LoginResult{Failure: LoginFailureInternal, Err: err, Reason: "issue_access", User: user}
	}
	result.AccessToken = access
	result.AccessExpiresAt = exp

	if remember {
		refresh, _, err := deps.Tokens.Issue(user.Username, jwt.KindRefresh, deps.RefreshTTL)
		if err != nil {
			return LoginResult{Failure: LoginFailureInternal, Err: err, Reason: "issue_refresh", User: user}
		}
		result.RefreshToken = refresh
	}

	return result
}

func upgradeDigest(ctx context.Context, user *store.User, password string, deps LoginDeps) bool {
	warn := warnOrDiscard(deps.Warn)
	needs, err := deps.Hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return false
	}
	digest, err := deps.Hasher.Hash(ctx, password)
	if err != nil {
		warn("goAuthz: password hash upgrade generation failed", "user_id", user.ID, "error", err)
		return false
	}
	if _, err := deps.Store.UpdateUser(ctx, user.ID, store.UserUpdate{PasswordHash: &digest}); err != nil {
		warn("goAuthz: password hash upgrade update failed", "user_id", user.ID, "error", err)
		return false
	}
	user.PasswordHash = digest
	return true
}
