package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/store"
)

// AuthorizeFailureKind classifies authorization failures for root-level mapping.
type AuthorizeFailureKind int

const (
	AuthorizeFailureNone AuthorizeFailureKind = iota
	AuthorizeFailureInvalidToken
	AuthorizeFailureRevoked
	AuthorizeFailureUnknownSubject
	AuthorizeFailureDisabled
	AuthorizeFailureForbidden
	AuthorizeFailureInternal
)

// AuthorizeResult carries the decision and the resolved identity.
type AuthorizeResult struct {
	Failure     AuthorizeFailureKind
	Err         error
	Claims      *jwt.Claims
	User        *store.User
	Permissions []string
	Roles       []string
	Superuser   bool
	CacheHit    bool
	// RevocationErr is set when the registry could not be consulted.
	RevocationErr error
}

// AuthorizeDeps captures authorization dependencies. Cache may be nil.
type AuthorizeDeps struct {
	Store       store.CredentialStore
	Tokens      TokenCodec
	Revocations RevocationRegistry
	Cache       PermissionCache
	Warn        func(string, ...any)
}

// RunAuthorize validates an access token and evaluates policy against the
// subject's effective permissions. Superusers skip resolution entirely.
func RunAuthorize(ctx context.Context, tokenStr string, policy permission.Policy, deps AuthorizeDeps) AuthorizeResult {
	warn := warnOrDiscard(deps.Warn)

	claims, err := deps.Tokens.Verify(tokenStr, jwt.KindAccess)
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureInvalidToken, Err: err}
	}

	var revocationErr error
	revoked, err := deps.Revocations.IsRevoked(ctx, tokenStr)
	if err != nil {
		revocationErr = err
		if !revoked {
			warn("goAuthz: revocation lookup failed open", "error", err)
		}
	}
	if revoked {
		return AuthorizeResult{Failure: AuthorizeFailureRevoked, Err: revocationErr, Claims: claims, RevocationErr: revocationErr}
	}

	user, err := deps.Store.FindUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthorizeResult{Failure: AuthorizeFailureUnknownSubject, Claims: claims, RevocationErr: revocationErr}
		}
		return AuthorizeResult{Failure: AuthorizeFailureInternal, Err: err, Claims: claims, RevocationErr: revocationErr}
	}
	if !user.IsActive {
		return AuthorizeResult{Failure: AuthorizeFailureDisabled, Claims: claims, User: user, RevocationErr: revocationErr}
	}

	result := AuthorizeResult{Claims: claims, User: user, RevocationErr: revocationErr}
	if user.IsSuperuser {
		result.Superuser = true
		result.Permissions = []string{}
		return result
	}

	codes, hit, err := resolvePermissions(ctx, user.ID, deps)
	if err != nil {
		result.Failure = AuthorizeFailureInternal
		result.Err = err
		return result
	}
	granted := permission.NewSet(codes...)
	result.Permissions = granted.Sorted()
	result.CacheHit = hit

	var roles permission.Set
	if policy.NeedsRoles() {
		assigned, err := deps.Store.ListRolesForUser(ctx, user.ID)
		if err != nil {
			result.Failure = AuthorizeFailureInternal
			result.Err = err
			return result
		}
		roles = make(permission.Set, len(assigned))
		for _, r := range assigned {
			roles[r.Code] = struct{}{}
		}
		result.Roles = roles.Sorted()
	}

	if !policy.Allows(granted, roles) {
		result.Failure = AuthorizeFailureForbidden
	}
	return result
}

func resolvePermissions(ctx context.Context, userID string, deps AuthorizeDeps) ([]string, bool, error) {
	if deps.Cache != nil {
		if codes, ok := deps.Cache.Get(userID); ok {
			return codes, true, nil
		}
	}
	codes, err := deps.Store.ListPermissionCodesForUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if deps.Cache != nil {
		deps.Cache.Add(userID, codes)
	}
	return codes, false, nil
}
