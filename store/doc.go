// Package store defines the account and RBAC records shared by the engine and
// its storage backends, together with the interfaces those backends satisfy.
//
// Backends live in subpackages: store/postgres (pgx, golang-migrate) and
// store/sqlite (sqlx, go-sqlite3). Both map uniqueness violations to
// ErrDuplicateUsername, ErrDuplicateEmail or ErrDuplicateCode and missing rows
// to ErrNotFound.
package store
