// Package sqlite implements store.Store on SQLite through sqlx and the
// mattn/go-sqlite3 driver. It suits single-node deployments and tests; the
// schema is created on Open.
package sqlite
