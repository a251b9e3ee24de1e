package store

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned when a write would push the store past its byte quota.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// MemoryStore holds blobs in Go memory.
// Thread-safe for concurrent access from WASM callbacks.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	quota int
	saves int
}

// NewMemoryStore creates an empty store without a quota.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithQuota(0)
}

// NewMemoryStoreWithQuota creates an empty store that rejects writes once the
// total stored bytes would exceed quota. A quota of 0 disables the check.
func NewMemoryStoreWithQuota(quota int) *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		quota: quota,
	}
}

// Load returns a copy of the blob under key, or nil when absent.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), b...), nil
}

// Save stores a copy of data under key.
func (s *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		total := len(data)
		for k, b := range s.blobs {
			if k != key {
				total += len(b)
			}
		}
		if total > s.quota {
			return ErrQuotaExceeded
		}
	}

	s.blobs[key] = append([]byte(nil), data...)
	s.saves++
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

// SetQuota changes the byte quota. 0 disables it.
func (s *MemoryStore) SetQuota(quota int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quota = quota
}

// Saves returns the number of successful writes.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.saves
}

// Keys returns all stored keys.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Storer = (*MemoryStore)(nil)
