package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteKV stores slots in a single-table SQLite database.
type SQLiteKV struct {
	conn *sql.DB
}

// NewSQLiteKV opens the database file at path (":memory:" for a throwaway one).
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// One connection: every statement sees the same database, including :memory:.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: creating kv table: %w", err)
	}

	return &SQLiteKV{conn: conn}, nil
}

func (k *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := k.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading %q: %w", key, err)
	}
	return value, nil
}

func (k *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := k.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite: writing %q: %w", key, err)
	}
	return nil
}

func (k *SQLiteKV) Close() error {
	return k.conn.Close()
}
