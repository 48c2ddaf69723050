// ABOUTME: In-memory Store implementation for testing
// ABOUTME: Counts writes and supports failure injection per operation

package keystore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[Key][]byte
	excluded map[Key]bool
	writes   int
	deletes  int
	fail     func(op string, key Key) error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[Key][]byte),
		excluded: make(map[Key]bool),
	}
}

// FailWith installs a hook consulted before every operation. A non-nil
// return is reported instead of performing the operation. Pass nil to clear.
func (m *MemoryStore) FailWith(fn func(op string, key Key) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

// Writes returns the number of successful writes.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Deletes returns the number of successful deletes.
func (m *MemoryStore) Deletes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deletes
}

// Excluded reports whether the value at key is excluded from backup.
func (m *MemoryStore) Excluded(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.excluded[key]
}

func (m *MemoryStore) injected(op string, key Key) error {
	if m.fail == nil {
		return nil
	}
	return m.fail(op, key)
}

func (m *MemoryStore) Read(ctx context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.injected("read", key); err != nil {
		return nil, err
	}
	data, ok := m.values[key]
	if !ok {
		return nil, &Error{Op: "read", Key: key, Kind: ErrNotFound}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Write(ctx context.Context, key Key, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("write", key); err != nil {
		return err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.values[key] = stored
	m.writes++
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("delete", key); err != nil {
		return err
	}
	if _, ok := m.values[key]; !ok {
		return &Error{Op: "delete", Key: key, Kind: ErrNotFound}
	}
	delete(m.values, key)
	delete(m.excluded, key)
	m.deletes++
	return nil
}

func (m *MemoryStore) ExcludeFromBackup(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("exclude from backup", key); err != nil {
		return err
	}
	if _, ok := m.values[key]; ok {
		m.excluded[key] = true
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
