package sqlkv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sqliteBusyTimeoutMs = 5000

// PostgresConnString builds a connection string from the POSTGRES_* settings.
func PostgresConnString(user, password, host, port, dbName string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbName)
}

func OpenPostgres(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open(Postgres.Driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	s := NewStore(db, Postgres)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens the database file at path, or a private in-memory database
// when path is ":memory:".
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file::memory:?_pragma=busy_timeout(%d)", sqliteBusyTimeoutMs)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.Clean(path), sqliteBusyTimeoutMs)
	}

	db, err := sql.Open(SQLite.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one connection serializes Update and keeps :memory: a single database
	db.SetMaxOpenConns(1)

	s := NewStore(db, SQLite)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
