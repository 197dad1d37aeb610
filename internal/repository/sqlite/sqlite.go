// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. Use ":memory:" for throwaway databases in tests.
//
// SERIALIZATION:
// The pool is limited to one connection. Every mutation runs in a
// transaction opened by WithinTx, and that transaction holds the only
// connection until it commits or rolls back. Mutations therefore execute one
// at a time, in a single global order, and a reader never observes a half
// applied change. Repository methods find the active transaction in the
// context (see querier), so checks made inside WithinTx see the same state
// the writes will modify.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sakif/resumiro/internal/repository"
)

var _ repository.Transactor = (*DB)(nil)

// DB wraps the sql.DB pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/resumiro.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database, lost on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: the serialization point for all mutations. It also
	// keeps a ":memory:" database alive, since each new connection would
	// otherwise see its own empty database.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		// Another process (the CLI next to the server) may hold the write lock.
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection; used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

type txKey struct{}

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction carried by ctx, or the pool when there is none.
// Going through the pool while a transaction is open on the same goroutine
// would wait forever for the single connection, so every query must use q.
func (db *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.conn
}

// WithinTx runs fn in a transaction. A context that already carries one is
// passed through unchanged, so nested calls join the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation matches SQLite's constraint error text. The driver's
// error code type lives in an internal package, so the message is all we get.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// AUTOINCREMENT guarantees ids are never reused after a delete: a deleted
// company or certificate id keeps resolving to "not found".
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			principal  TEXT PRIMARY KEY,
			role       INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS companies (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			website    TEXT NOT NULL DEFAULT '',
			location   TEXT NOT NULL DEFAULT '',
			extra      TEXT NOT NULL DEFAULT '',
			creator    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_companies_creator ON companies(creator);

		CREATE TABLE IF NOT EXISTS memberships (
			company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			recruiter  TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (company_id, recruiter)
		);
		CREATE INDEX IF NOT EXISTS idx_memberships_recruiter ON memberships(recruiter);
	`)
	if err != nil {
		return fmt.Errorf("creating company tables: %w", err)
	}

	// company_id deliberately has no foreign key: certificates outlive a
	// deleted verifying company.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS certificates (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			url        TEXT NOT NULL UNIQUE,
			candidate  TEXT NOT NULL,
			company_id INTEGER NOT NULL,
			status     INTEGER NOT NULL DEFAULT 0,
			decided_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_certificates_candidate ON certificates(candidate);
	`)
	if err != nil {
		return fmt.Errorf("creating certificates table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			kind        TEXT NOT NULL,
			entity      TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			actor       TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			occurred_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	return nil
}
