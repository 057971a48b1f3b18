// Package localstore persists client state as whole string values by key.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/shared"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("medistore")

// BoltStore keeps values in one bucket of a bbolt file
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the store file at path
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns the value stored under key, or "" when unset
func (s *BoltStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", unavailable(err)
	}
	return value, nil
}

// Set replaces the value stored under key in a single transaction
func (s *BoltStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Close closes the file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func unavailable(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return shared.ErrUnavailable.WithMessage("Local storage is closed")
	}
	return fmt.Errorf("%w: %v", shared.ErrUnavailable.WithMessage("Local storage is unavailable"), err)
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	writes int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value stored under key, or "" when unset
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// Set replaces the value stored under key
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.writes++
	return nil
}

// Delete removes key
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Writes returns how many Set calls have been made
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

var (
	_ cart.Store = (*BoltStore)(nil)
	_ cart.Store = (*MemoryStore)(nil)
)
