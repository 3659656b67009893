package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateUsername is returned when a write collides with an existing username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is returned when a write collides with an existing email.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateCode is returned when a role or permission code already exists.
	ErrDuplicateCode = errors.New("code already exists")
)

// User is a stored account.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsSuperuser  bool      `db:"is_superuser" json:"is_superuser"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Role groups permissions and is assigned to users.
type Role struct {
	ID          string `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

// Permission is a single grantable capability identified by Code.
type Permission struct {
	ID          string `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

// NewUser carries the fields needed to create a User. The store assigns ID
// and timestamps.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	IsActive     bool
	IsSuperuser  bool
}

// UserUpdate names the user columns to change. Nil fields are left as stored.
type UserUpdate struct {
	Email        *string
	FullName     *string
	PasswordHash *string
	IsActive     *bool
	IsSuperuser  *bool
}

// Empty reports whether upd changes nothing.
func (upd UserUpdate) Empty() bool {
	return upd.Email == nil && upd.FullName == nil && upd.PasswordHash == nil &&
		upd.IsActive == nil && upd.IsSuperuser == nil
}

// UserLookup selects users by username or email. Exactly one field should be set.
type UserLookup struct {
	Username string
	Email    string
}

// ListOptions pages through users ordered by creation time.
type ListOptions struct {
	Offset int
	Limit  int
}

// CredentialStore persists users and exposes the role data needed to
// resolve permissions.
type CredentialStore interface {
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, in NewUser) (*User, error)
	// UpdateUser writes only the non-nil fields of upd and returns the
	// resulting row. Columns not named in upd are never overwritten.
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error)
	UserExists(ctx context.Context, lookup UserLookup) (bool, error)
	ListRolesForUser(ctx context.Context, userID string) ([]Role, error)
	ListPermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
	// ListPermissionCodesForUser returns the distinct permission codes granted
	// through any role of the user, resolved in a single round trip.
	ListPermissionCodesForUser(ctx context.Context, userID string) ([]string, error)
}

// Admin manages users, roles and permissions. Both bundled stores implement it.
type Admin interface {
	ListUsers(ctx context.Context, opts ListOptions) ([]User, error)
	CreateRole(ctx context.Context, r Role) (*Role, error)
	FindRoleByCode(ctx context.Context, code string) (*Role, error)
	CreatePermission(ctx context.Context, p Permission) (*Permission, error)
	FindPermissionByCode(ctx context.Context, code string) (*Permission, error)
	AssignPermissionToRole(ctx context.Context, roleID, permissionID string) error
	AssignRoleToUser(ctx context.Context, userID, roleID string) error
	RevokeRoleFromUser(ctx context.Context, userID, roleID string) error
}

// Store is implemented by the bundled Postgres and SQLite backends.
type Store interface {
	CredentialStore
	Admin
	Close() error
}

// NormalizeListOptions clamps paging to sane bounds.
func NormalizeListOptions(opts ListOptions) ListOptions {
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 100
	}
	return opts
}
