package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB is the single SQLite connection shared by every repository. mu
// serializes whole operations; it is never held across network calls.
type DB struct {
	*sql.DB
	mu sync.Mutex
}

func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// OpenAndMigrate opens the database and applies pending migrations.
func OpenAndMigrate(path string) (*DB, uint, error) {
	db, err := Open(path)
	if err != nil {
		return nil, 0, err
	}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, 0, err
	}
	if dirty {
		db.Close()
		return nil, version, fmt.Errorf("database schema version %d is dirty", version)
	}

	return db, version, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
