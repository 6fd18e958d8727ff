// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the Go binary as a single file.
// A clicker game backend with one logical store does not need a separate
// database server, and tests get a fresh database per test with ":memory:".
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler is
// needed. sqlx sits on top of database/sql and scans rows straight into
// structs via their `db:"..."` tags.
//
// LAYOUT:
//   - accounts      one row per player, live progress as a JSON TEXT column
//   - publications  append-only feed, one row per published snapshot
//   - messages      direct messages with an expires_at deadline
//
// All instants are stored as Unix milliseconds (INTEGER) so that range
// comparisons in SQL are plain integer comparisons.
package sqlite

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps a sqlx connection pool and hands out the per-aggregate stores.
type DB struct {
	conn *sqlx.DB

	accounts *AccountStore
	messages *MessageStore
}

// Option configures a DB at construction time.
type Option func(*DB)

// WithPublicationRetention keeps at most n publications per account, pruning
// the oldest in the same transaction as each append. n <= 0 keeps everything.
func WithPublicationRetention(n int) Option {
	return func(db *DB) {
		db.accounts.retention = n
	}
}

// WithClock overrides the time source used when a caller does not supply one.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.accounts.now = now
		db.messages.now = now
	}
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/candle.db"  file-based database (persistent)
//   - ":memory:"        in-memory database (tests)
//
// Pragmas are passed in the DSN so modernc applies them to EVERY pooled
// connection, not just the one that happens to run an Exec.
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is its own empty database, so the pool
	// must never grow past one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a writer holds the lock. The mode is
	// stored in the database file, so running it once is enough.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if err := migrateUp(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	if err := backfillFoldedUsernames(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: folding usernames: %w", err)
	}

	return newDB(conn, opts...), nil
}

// newDB wires the stores around an already-open connection. Tests use it
// directly with a sqlmock connection.
func newDB(conn *sqlx.DB, opts ...Option) *DB {
	db := &DB{conn: conn}
	db.accounts = &AccountStore{conn: conn, now: time.Now}
	db.messages = &MessageStore{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Accounts returns the account, progress and publication store.
func (db *DB) Accounts() *AccountStore {
	return db.accounts
}

// Messages returns the direct message store.
func (db *DB) Messages() *MessageStore {
	return db.messages
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrateUp applies the embedded migrations with golang-migrate.
//
// The migrate instance is intentionally not closed: Close would also close
// the *sql.DB we share with it.
func migrateUp(conn *sqlx.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migration files: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(conn.DB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// backfillFoldedUsernames fills username_folded for accounts created before
// the column existed. New accounts get it in Create.
func backfillFoldedUsernames(conn *sqlx.DB) error {
	var rows []struct {
		ID       string `db:"id"`
		Username string `db:"username"`
	}
	err := conn.Select(&rows,
		`SELECT id, username FROM accounts WHERE username_folded = '' AND username <> ''`)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := conn.Exec(`UPDATE accounts SET username_folded = ? WHERE id = ?`,
			foldUsername(row.Username), row.ID); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
