package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KV is a namespaced string store on the kv table.
type KV struct {
	db        *DB
	namespace string
}

// NewKV returns a store scoped to namespace.
func NewKV(db *DB, namespace string) *KV {
	return &KV{db: db, namespace: namespace}
}

// Get returns the value for key and whether it exists.
func (s *KV) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM kv WHERE namespace = ? AND key = ?", s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s/%s: %w", s.namespace, key, err)
	}
	return value, true, nil
}

// Set upserts key.
func (s *KV) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)",
		s.namespace, key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("kv set %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *KV) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE namespace = ? AND key = ?", s.namespace, key); err != nil {
		return fmt.Errorf("kv delete %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

// Clear removes every key in the namespace.
func (s *KV) Clear() error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE namespace = ?", s.namespace); err != nil {
		return fmt.Errorf("kv clear %s: %w", s.namespace, err)
	}
	return nil
}
