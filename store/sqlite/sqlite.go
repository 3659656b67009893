package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/MrEthical07/goAuthz/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	full_name     TEXT NOT NULL DEFAULT '',
	is_active     BOOLEAN NOT NULL DEFAULT 1,
	is_superuser  BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at, username);

CREATE TABLE IF NOT EXISTS roles (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS permissions (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS role_permissions (
	role_id       TEXT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
	permission_id TEXT NOT NULL REFERENCES permissions (id) ON DELETE CASCADE,
	PRIMARY KEY (role_id, permission_id)
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	role_id TEXT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, role_id)
);
`

// Store is a SQLite backed store.Store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at dsn and creates the schema. Use
// ":memory:" for a throwaway database. The pool is limited to one
// connection so an in-memory database is shared by every query.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: connect: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const userColumns = `id, username, email, password_hash, full_name, is_active, is_superuser, created_at, updated_at`

func (s *Store) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	var u store.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: find user: %w", err)
	}
	return &u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, `username = ?`, username)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, `id = ?`, id)
}

func (s *Store) CreateUser(ctx context.Context, in store.NewUser) (*store.User, error) {
	now := s.now().UTC()
	u := store.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		FullName:     in.FullName,
		IsActive:     in.IsActive,
		IsSuperuser:  in.IsSuperuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :username, :email, :password_hash, :full_name, :is_active, :is_superuser, :created_at, :updated_at)`, &u)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd store.UserUpdate) (*store.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			email = COALESCE(?, email),
			full_name = COALESCE(?, full_name),
			password_hash = COALESCE(?, password_hash),
			is_active = COALESCE(?, is_active),
			is_superuser = COALESCE(?, is_superuser),
			updated_at = ?
		WHERE id = ?`,
		upd.Email, upd.FullName, upd.PasswordHash, upd.IsActive, upd.IsSuperuser, s.now().UTC(), id,
	)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.getUser(ctx, `id = ?`, id)
}

func (s *Store) UserExists(ctx context.Context, lookup store.UserLookup) (bool, error) {
	var (
		query string
		arg   string
	)
	switch {
	case lookup.Username != "":
		query, arg = `SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`, lookup.Username
	case lookup.Email != "":
		query, arg = `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, lookup.Email
	default:
		return false, nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, arg); err != nil {
		return false, fmt.Errorf("sqlite: user exists: %w", err)
	}
	return exists, nil
}

func (s *Store) ListUsers(ctx context.Context, opts store.ListOptions) ([]store.User, error) {
	opts = store.NormalizeListOptions(opts)
	var out []store.User
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at, username
		LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list users: %w", err)
	}
	return out, nil
}

func (s *Store) ListRolesForUser(ctx context.Context, userID string) ([]store.Role, error) {
	var out []store.Role
	err := s.db.SelectContext(ctx, &out, `
		SELECT r.id, r.code, r.name, r.description
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list roles: %w", err)
	}
	return out, nil
}

func (s *Store) ListPermissionsForRole(ctx context.Context, roleID string) ([]store.Permission, error) {
	var out []store.Permission
	err := s.db.SelectContext(ctx, &out, `
		SELECT p.id, p.code, p.name, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ?
		ORDER BY p.code`, roleID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list permissions: %w", err)
	}
	return out, nil
}

func (s *Store) ListPermissionCodesForUser(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := s.db.SelectContext(ctx, &codes, `
		SELECT DISTINCT p.code
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = ?
		ORDER BY p.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list permission codes: %w", err)
	}
	return codes, nil
}

/*
====================================
RBAC ADMINISTRATION
====================================
*/

func (s *Store) CreateRole(ctx context.Context, r store.Role) (*store.Role, error) {
	r.ID = uuid.NewString()
	if strings.TrimSpace(r.Name) == "" {
		r.Name = r.Code
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO roles (id, code, name, description) VALUES (:id, :code, :name, :description)`, &r)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &r, nil
}

func (s *Store) FindRoleByCode(ctx context.Context, code string) (*store.Role, error) {
	var r store.Role
	err := s.db.GetContext(ctx, &r, `SELECT id, code, name, description FROM roles WHERE code = ?`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: find role: %w", err)
	}
	return &r, nil
}

func (s *Store) CreatePermission(ctx context.Context, p store.Permission) (*store.Permission, error) {
	p.ID = uuid.NewString()
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.Code
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO permissions (id, code, name, description) VALUES (:id, :code, :name, :description)`, &p)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &p, nil
}

func (s *Store) FindPermissionByCode(ctx context.Context, code string) (*store.Permission, error) {
	var p store.Permission
	err := s.db.GetContext(ctx, &p, `SELECT id, code, name, description FROM permissions WHERE code = ?`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: find permission: %w", err)
	}
	return &p, nil
}

func (s *Store) AssignPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)`, roleID, permissionID)
	return mapWriteErr(err)
}

func (s *Store) AssignRoleToUser(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID)
	return mapWriteErr(err)
}

func (s *Store) RevokeRoleFromUser(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID)
	if err != nil {
		return fmt.Errorf("sqlite: revoke role: %w", err)
	}
	return nil
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return fmt.Errorf("sqlite: write: %w", err)
	}
	switch sqErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		msg := sqErr.Error()
		switch {
		case strings.Contains(msg, "users.username"):
			return store.ErrDuplicateUsername
		case strings.Contains(msg, "users.email"):
			return store.ErrDuplicateEmail
		default:
			return store.ErrDuplicateCode
		}
	case sqlite3.ErrConstraintForeignKey:
		return store.ErrNotFound
	}
	return fmt.Errorf("sqlite: write: %w", err)
}
