package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors migrations/000001 for SQLite; JSON columns are TEXT.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS challenges (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	date         TEXT NOT NULL UNIQUE,
	answer       TEXT NOT NULL,
	alternatives TEXT NOT NULL DEFAULT '[]',
	facts        TEXT NOT NULL DEFAULT '[]',
	category     TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// OpenSQLite opens (creating if needed) a SQLite database at path and ensures the challenges table exists.
// path may be ":memory:"; the pool is then pinned to one connection so every query sees the same database.
func OpenSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db: sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
