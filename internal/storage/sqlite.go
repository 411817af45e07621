package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fentz26/taskdeck/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the token in a key/value table, so several profiles can
// share one database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements TokenStore.
func (s *SQLiteStore) Get() (*models.AccessToken, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, AccessTokenKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query access token: %w", err)
	}
	return decode([]byte(value))
}

// Set implements TokenStore.
func (s *SQLiteStore) Set(tok models.AccessToken) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		AccessTokenKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	return nil
}

// Remove implements TokenStore.
func (s *SQLiteStore) Remove() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, AccessTokenKey); err != nil {
		return fmt.Errorf("delete access token: %w", err)
	}
	return nil
}
