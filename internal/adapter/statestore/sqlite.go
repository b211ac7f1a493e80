// Package statestore persists the last applied mode of each pin so that
// it can be replayed after a restart.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"pinengine/internal/domain"
)

// SQLiteStore implements domain.StateStore on a single SQLite table shared
// by namespaces. Keys are decimal pin ids.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath, namespace string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &SQLiteStore{db: db, namespace: namespace}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pin_states (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, pin int) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM pin_states WHERE namespace = ? AND key = ?",
		s.namespace, strconv.Itoa(pin),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeError("SQLiteStore.Get", pin, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, pin int, mode string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pin_states (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, strconv.Itoa(pin), mode, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storeError("SQLiteStore.Put", pin, err)
	}
	return nil
}

// Delete removes the record for pin. Deleting a missing record is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, pin int) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM pin_states WHERE namespace = ? AND key = ?",
		s.namespace, strconv.Itoa(pin),
	)
	if err != nil {
		return storeError("SQLiteStore.Delete", pin, err)
	}
	return nil
}

// ForEach visits records in ascending numeric pin order. Keys that are not
// decimal integers are skipped.
func (s *SQLiteStore) ForEach(ctx context.Context, fn func(pin int, mode string) error) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM pin_states WHERE namespace = ? ORDER BY CAST(key AS INTEGER), key",
		s.namespace,
	)
	if err != nil {
		return storeError("SQLiteStore.ForEach", -1, err)
	}

	type record struct {
		pin  int
		mode string
	}
	var records []record
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return storeError("SQLiteStore.ForEach", -1, err)
		}
		pin, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		records = append(records, record{pin: pin, mode: value})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return storeError("SQLiteStore.ForEach", -1, err)
	}
	rows.Close()

	// fn may write back to the store; with a single connection that must
	// happen after the cursor is released.
	for _, r := range records {
		if err := fn(r.pin, r.mode); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func storeError(op string, pin int, err error) error {
	detail := err.Error()
	if pin >= 0 {
		detail = fmt.Sprintf("gpio %d: %v", pin, err)
	}
	return domain.NewSubSystemError("store", op, domain.ErrStoreFailure, detail)
}

var _ domain.StateStore = (*SQLiteStore)(nil)
