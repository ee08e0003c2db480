// ABOUTME: Store interface for the deficit system of record.
// ABOUTME: Key-value get/set/delete plus ordered prefix enumeration; no multi-key transactions.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps every backend failure.
	ErrUnavailable = errors.New("storage unavailable")
)

// Entry is one key/value pair returned by Entries.
type Entry struct {
	Key   string
	Value []byte
}

// Store defines the key-value contract every backend implements.
// Implementations are safe for concurrent use but offer no atomicity across keys.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// Delete of an absent key succeeds.
	Delete(key string) error
	// Entries returns every pair whose key starts with prefix, in ascending key order.
	// An empty prefix enumerates the whole store.
	Entries(prefix string) ([]Entry, error)
	Close() error
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrUnavailable, op, key, err)
}

// GetJSON loads and decodes the value at key.
func GetJSON[T any](s Store, key string) (*T, error) {
	data, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(key, data)
}
