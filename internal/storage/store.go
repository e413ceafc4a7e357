// Package storage is the durable local key/value store backing client-side settings
// such as label overrides.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// LabelsKey is the well-known key holding persisted label overrides.
const LabelsKey = "labels"

var (
	ErrClosed     = errors.New("storage: store closed")
	ErrInvalidKey = errors.New("storage: invalid key")
)

const schema = `
CREATE TABLE IF NOT EXISTS local_storage (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Store is a SQLite-backed key/value table.
type Store struct {
	db *sql.DB
}

// Open opens (creating when missing) the store at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.check(key); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.check(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) check(key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// Labels is a JSON object view over LabelsKey.
type Labels struct {
	store *Store
}

func NewLabels(store *Store) *Labels {
	return &Labels{store: store}
}

// Load returns the persisted labels, or an empty map when none are stored.
func (l *Labels) Load(ctx context.Context) (map[string]string, error) {
	raw, ok, err := l.store.Get(ctx, LabelsKey)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if !ok || strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", LabelsKey, err)
	}
	return out, nil
}

func (l *Labels) Save(ctx context.Context, labels map[string]string) error {
	if labels == nil {
		labels = map[string]string{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", LabelsKey, err)
	}
	return l.store.Set(ctx, LabelsKey, string(raw))
}
