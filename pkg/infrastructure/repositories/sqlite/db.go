package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// DB wraps the Bun connection of the allocation ledger.
// SQLite allows one writer, so the pool holds a single connection.
type DB struct {
	SQL *sql.DB
	Bun *bun.DB
}

// OpenDB opens (or creates) the ledger database at path
func OpenDB(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(15 * time.Minute)

	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{
		SQL: sqldb,
		Bun: bun.NewDB(sqldb, sqlitedialect.New()),
	}, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db == nil || db.Bun == nil {
		return nil
	}
	return db.Bun.Close()
}
