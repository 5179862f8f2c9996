package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Dialect string

const (
	Postgres Dialect = "pgx"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// LockClause returns the row lock suffix for SELECT statements. SQLite has
// no row locks; its single writer connection serializes transactions.
func (dialect Dialect) LockClause() string {
	if dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

type Database struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect
}

func NewDatabaseConnection(ctx context.Context, dialect Dialect, domainStringName string) (*Database, error) {
	if dialect == SQLite {
		return newSQLiteConnection(ctx, domainStringName)
	}

	db, err := sql.Open("pgx", domainStringName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	pool, err := pgxpool.New(ctx, domainStringName)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		_ = db.Close()
		return nil, fmt.Errorf("pgxpool ping: %w", err)
	}

	return &Database{db: db, pool: pool, dialect: Postgres}, nil
}

func newSQLiteConnection(ctx context.Context, domainStringName string) (*Database, error) {
	db, err := sql.Open("sqlite", sqliteDSN(domainStringName))
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// One connection: in-memory databases live and die with it, and SQLite
	// only admits a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &Database{db: db, dialect: SQLite}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (db *Database) Close() error {
	if db == nil || db.db == nil {
		return nil
	}
	if db.pool != nil {
		db.pool.Close()
	}
	return db.db.Close()
}

func (db *Database) Dialect() Dialect {
	return db.dialect
}

func (db *Database) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *Database) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

func (db *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

func (db *Database) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (db *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
