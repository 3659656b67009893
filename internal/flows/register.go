package flows

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/goAuthz/internal/rate"
	"github.com/MrEthical07/goAuthz/store"
)

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureInvalidInput
	RegisterFailureUsernameTaken
	RegisterFailureEmailTaken
	RegisterFailureRateLimited
	RegisterFailureInternal
)

const (
	maxUsernameLength = 50
	maxEmailLength    = 255
	maxPasswordLength = 256
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	FullName string
}

// RegisterResult carries the created user or failure metadata.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	User    *store.User
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Store             store.CredentialStore
	Hasher            PasswordHasher
	Limiter           RegistrationRateLimiter
	MinPasswordLength int

	ClientIPFromContext func(context.Context) string
	Warn                func(string, ...any)
}

// RunRegister creates an active, non-superuser account.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	warn := warnOrDiscard(deps.Warn)

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := ValidateCredentials(req.Username, req.Email, req.Password, deps.MinPasswordLength); err != nil {
		return RegisterResult{Failure: RegisterFailureInvalidInput, Err: err}
	}

	if deps.Limiter != nil && deps.ClientIPFromContext != nil {
		if err := deps.Limiter.CheckRegistration(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return RegisterResult{Failure: RegisterFailureRateLimited, Err: err}
			}
			warn("goAuthz: registration limiter unavailable", "error", err)
		}
	}

	taken, err := deps.Store.UserExists(ctx, store.UserLookup{Username: req.Username})
	if err != nil {
		return RegisterResult{Failure: RegisterFailureInternal, Err: err}
	}
	if taken {
		return RegisterResult{Failure: RegisterFailureUsernameTaken}
	}
	taken, err = deps.Store.UserExists(ctx, store.UserLookup{Email: req.Email})
	if err != nil {
		return RegisterResult{Failure: RegisterFailureInternal, Err: err}
	}
	if taken {
		return RegisterResult{Failure: RegisterFailureEmailTaken}
	}

	digest, err := deps.Hasher.Hash(ctx, req.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureInternal, Err: err}
	}

	user, err := deps.Store.CreateUser(ctx, store.NewUser{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: digest,
		FullName:     req.FullName,
		IsActive:     true,
	})
	if err != nil {
		// Lost a race with a concurrent registration.
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			return RegisterResult{Failure: RegisterFailureUsernameTaken}
		case errors.Is(err, store.ErrDuplicateEmail):
			return RegisterResult{Failure: RegisterFailureEmailTaken}
		}
		return RegisterResult{Failure: RegisterFailureInternal, Err: err}
	}

	return RegisterResult{User: user}
}

// ValidateCredentials checks the shape of registration fields.
func ValidateCredentials(username, email, password string, minPassword int) error {
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return errors.New("username must be 1-50 characters")
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password, minPassword)
}

// ValidateEmail accepts a bare addr-spec.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return errors.New("email must be 1-255 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("email is not a valid address")
	}
	return nil
}

// ValidatePassword enforces length bounds.
func ValidatePassword(password string, minLength int) error {
	n := utf8.RuneCountInString(password)
	if n < minLength {
		return errors.New("password too short")
	}
	if len(password) > maxPasswordLength {
		return errors.New("password too long")
	}
	return nil
}
