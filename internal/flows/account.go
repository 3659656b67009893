package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goAuthz/store"
)

// AccountFailureKind classifies account administration failures.
type AccountFailureKind int

const (
	AccountFailureNone AccountFailureKind = iota
	AccountFailureNotFound
	AccountFailureInvalidInput
	AccountFailureEmailTaken
	AccountFailureInternal
)

// ProfileChange holds optional profile edits. Nil fields are left unchanged.
type ProfileChange struct {
	Email    *string
	FullName *string
	Password *string
}

// AccountResult carries the updated user or failure metadata.
type AccountResult struct {
	Failure AccountFailureKind
	Err     error
	User    *store.User
	Changed bool
}

// AccountDeps captures account administration dependencies.
type AccountDeps struct {
	Store             store.CredentialStore
	Hasher            PasswordHasher
	Cache             PermissionCache
	MinPasswordLength int
}

// RunSetActive flips the active flag. Deactivation is enforced by the next
// authorization since every check reloads the user.
func RunSetActive(ctx context.Context, userID string, active bool, deps AccountDeps) AccountResult {
	user, res := loadUser(ctx, userID, deps)
	if user == nil {
		return res
	}
	if user.IsActive == active {
		return AccountResult{User: user}
	}

	updated, err := deps.Store.UpdateUser(ctx, user.ID, store.UserUpdate{IsActive: &active})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountResult{Failure: AccountFailureNotFound}
		}
		return AccountResult{Failure: AccountFailureInternal, Err: err}
	}
	if deps.Cache != nil {
		deps.Cache.Invalidate(updated.ID)
	}
	return AccountResult{User: updated, Changed: true}
}

// RunUpdateProfile applies change to the user identified by userID.
func RunUpdateProfile(ctx context.Context, userID string, change ProfileChange, deps AccountDeps) AccountResult {
	user, res := loadUser(ctx, userID, deps)
	if user == nil {
		return res
	}

	var upd store.UserUpdate
	if change.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*change.Email))
		if email != user.Email {
			if err := ValidateEmail(email); err != nil {
				return AccountResult{Failure: AccountFailureInvalidInput, Err: err}
			}
			taken, err := deps.Store.UserExists(ctx, store.UserLookup{Email: email})
			if err != nil {
				return AccountResult{Failure: AccountFailureInternal, Err: err}
			}
			if taken {
				return AccountResult{Failure: AccountFailureEmailTaken}
			}
			upd.Email = &email
		}
	}
	if change.FullName != nil {
		fullName := strings.TrimSpace(*change.FullName)
		upd.FullName = &fullName
	}
	if change.Password != nil {
		if err := ValidatePassword(*change.Password, deps.MinPasswordLength); err != nil {
			return AccountResult{Failure: AccountFailureInvalidInput, Err: err}
		}
		digest, err := deps.Hasher.Hash(ctx, *change.Password)
		if err != nil {
			return AccountResult{Failure: AccountFailureInternal, Err: err}
		}
		upd.PasswordHash = &digest
	}
	if upd.Empty() {
		return AccountResult{User: user}
	}

	// Only the named columns are written so a concurrent RunSetActive
	// during the hash above is not undone.
	updated, err := deps.Store.UpdateUser(ctx, user.ID, upd)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			return AccountResult{Failure: AccountFailureEmailTaken}
		case errors.Is(err, store.ErrNotFound):
			return AccountResult{Failure: AccountFailureNotFound}
		}
		return AccountResult{Failure: AccountFailureInternal, Err: err}
	}
	return AccountResult{User: updated, Changed: true}
}

func loadUser(ctx context.Context, userID string, deps AccountDeps) (*store.User, AccountResult) {
	user, err := deps.Store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, AccountResult{Failure: AccountFailureNotFound}
		}
		return nil, AccountResult{Failure: AccountFailureInternal, Err: err}
	}
	return user, AccountResult{}
}
