package goAuthz

import (
	"context"
	"time"

	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/store"
)

// User is a stored account. Subject claims carry User.Username.
type User = store.User

// Role groups permissions and is assigned to users.
type Role = store.Role

// Permission is a single grantable capability.
type Permission = store.Permission

// CredentialStore is the persistence interface the Engine needs for
// authentication and authorization.
//
//	Implementations: store/postgres, store/sqlite, store/memory
type CredentialStore = store.CredentialStore

// Store adds role and permission administration to CredentialStore.
type Store = store.Store

// ListOptions pages through users.
type ListOptions = store.ListOptions

// Policy is the requirement attached to a protected entry point.
type Policy = permission.Policy

// TokenPair is returned by Login and Refresh. RefreshToken is empty when
// Login was called without remember.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
}

// AuthResult is returned by a successful authorization. Permissions is the
// sorted effective permission set; it is empty for superusers, who bypass
// permission checks.
type AuthResult struct {
	User        *User
	Permissions []string
	Roles       []string
	Superuser   bool
}

// HasPermission reports whether the result grants code. Superusers hold every
// permission.
func (r *AuthResult) HasPermission(code string) bool {
	if r == nil {
		return false
	}
	if r.Superuser {
		return true
	}
	for _, p := range r.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

// RegisterInput carries the fields for a new account.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// ProfileUpdate holds optional profile edits. Nil fields are unchanged.
type ProfileUpdate struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// AuthorizeFunc authorizes a bearer token against a fixed policy. Engine.Guard
// builds one per protected route.
type AuthorizeFunc func(ctx context.Context, token string) (*AuthResult, error)
