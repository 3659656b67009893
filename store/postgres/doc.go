// Package postgres implements store.Store on PostgreSQL using pgx.
//
// The schema ships as embedded golang-migrate migrations; call Migrate
// before serving traffic. Every query is plain SQL through a pgxpool.Pool.
package postgres
