package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/goAuthz/store"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and pings the server.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool. Close closes the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const userColumns = `id, username, email, password_hash, full_name, is_active, is_superuser, created_at, updated_at`

func scanUser(row pgx.Row) (*store.User, error) {
	u := &store.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName,
		&u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*store.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) CreateUser(ctx context.Context, in store.NewUser) (*store.User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, full_name, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		uuid.NewString(), in.Username, in.Email, in.PasswordHash, in.FullName, in.IsActive, in.IsSuperuser,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd store.UserUpdate) (*store.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users SET
			email = COALESCE($2, email),
			full_name = COALESCE($3, full_name),
			password_hash = COALESCE($4, password_hash),
			is_active = COALESCE($5, is_active),
			is_superuser = COALESCE($6, is_superuser),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, upd.Email, upd.FullName, upd.PasswordHash, upd.IsActive, upd.IsSuperuser,
	))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, mapWriteErr(err)
	}
	return u, nil
}

func (s *Store) UserExists(ctx context.Context, lookup store.UserLookup) (bool, error) {
	var (
		query string
		arg   string
	)
	switch {
	case lookup.Username != "":
		query, arg = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, lookup.Username
	case lookup.Email != "":
		query, arg = `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, lookup.Email
	default:
		return false, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: user exists: %w", err)
	}
	return exists, nil
}

func (s *Store) ListUsers(ctx context.Context, opts store.ListOptions) ([]store.User, error) {
	opts = store.NormalizeListOptions(opts)
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at, username
		LIMIT $1 OFFSET $2`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) ListRolesForUser(ctx context.Context, userID string) ([]store.Role, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.code, r.name, r.description
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list roles: %w", err)
	}
	defer rows.Close()

	var out []store.Role
	for rows.Next() {
		var r store.Role
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Description); err != nil {
			return nil, fmt.Errorf("postgres: scan role: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListPermissionsForRole(ctx context.Context, roleID string) ([]store.Permission, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.code, p.name, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.code`, roleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list permissions: %w", err)
	}
	defer rows.Close()

	var out []store.Permission
	for rows.Next() {
		var p store.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("postgres: scan permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListPermissionCodesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT p.code
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list permission codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: collect permission codes: %w", err)
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
	_, err := s.db.Exec(ctx,
		`INSERT INTO roles (id, code, name, description) VALUES ($1, $2, $3, $4)`,
		r.ID, r.Code, r.Name, r.Description)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &r, nil
}

func (s *Store) FindRoleByCode(ctx context.Context, code string) (*store.Role, error) {
	var r store.Role
	err := s.db.QueryRow(ctx,
		`SELECT id, code, name, description FROM roles WHERE code = $1`, code,
	).Scan(&r.ID, &r.Code, &r.Name, &r.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: find role: %w", err)
	}
	return &r, nil
}

func (s *Store) CreatePermission(ctx context.Context, p store.Permission) (*store.Permission, error) {
	p.ID = uuid.NewString()
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.Code
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO permissions (id, code, name, description) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Code, p.Name, p.Description)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &p, nil
}

func (s *Store) FindPermissionByCode(ctx context.Context, code string) (*store.Permission, error) {
	var p store.Permission
	err := s.db.QueryRow(ctx,
		`SELECT id, code, name, description FROM permissions WHERE code = $1`, code,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: find permission: %w", err)
	}
	return &p, nil
}

func (s *Store) AssignPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, roleID, permissionID)
	return mapWriteErr(err)
}

func (s *Store) AssignRoleToUser(ctx context.Context, userID, roleID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	return mapWriteErr(err)
}

func (s *Store) RevokeRoleFromUser(ctx context.Context, userID, roleID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("postgres: revoke role: %w", err)
	}
	return nil
}

// mapWriteErr turns unique and foreign key violations into store sentinels.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "users_username_key":
			return store.ErrDuplicateUsername
		case "users_email_key":
			return store.ErrDuplicateEmail
		default:
			return store.ErrDuplicateCode
		}
	case "23503":
		return store.ErrNotFound
	}
	return fmt.Errorf("postgres: write: %w", err)
}
