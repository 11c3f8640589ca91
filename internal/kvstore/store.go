// Package kvstore implements the device-local durable key→string store the
// offline queue is persisted in. It is backed by SQLite so records survive
// process restarts, with optional AES-GCM encryption of values at rest.
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the durable key→string contract consumed by the queue layer.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// SQLStore is the SQLite-backed Store implementation.
type SQLStore struct {
	db  *sql.DB
	enc *encryptor
}

// New opens (creating if necessary) the store at the given path.
func New(dbPath string) (*SQLStore, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid store path")
	}

	if err := security.ValidateStorePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid store path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create store file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close store file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping store: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &SQLStore{db: db, enc: enc}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get returns the value for key, reporting whether it exists.
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var stored string
	err := retryableOperation(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&stored)
	}, "get")
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}

	value, err := s.enc.decryptIfEnabled(stored)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt value for %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key. The write replaces the previous value in a
// single statement, so a crash mid-write never leaves a partial entry.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	stored, err := s.enc.encryptIfEnabled(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt value for %q: %w", key, err)
	}

	query := `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	err = retryableOperation(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query, key, stored)
		return execErr
	}, "set")
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	err := retryableOperation(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
		return execErr
	}, "remove")
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
