// ABOUTME: In-memory Vault implementation for tests
// ABOUTME: Supports failure injection to exercise transient and integrity errors

package vault

import (
	"context"
	"sort"
	"sync"
)

// MemoryVault is an in-memory Vault for tests.
type MemoryVault struct {
	mu    sync.RWMutex
	items map[Query]Item
	fail  func(op string, q Query) error
}

// NewMemoryVault creates an empty MemoryVault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{items: make(map[Query]Item)}
}

// FailWith installs a hook consulted before every operation. A non-nil
// return is reported instead of performing the operation. Pass nil to clear.
func (m *MemoryVault) FailWith(fn func(op string, q Query) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

func (m *MemoryVault) injected(op string, q Query) error {
	if m.fail == nil {
		return nil
	}
	return m.fail(op, q)
}

// Add stores a new item.
func (m *MemoryVault) Add(ctx context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("add", item.Query); err != nil {
		return err
	}
	if _, ok := m.items[item.Query]; ok {
		return statusError("add", StatusDuplicateItem, nil)
	}
	if item.Attributes.Accessibility == "" {
		item.Attributes.Accessibility = AccessibleAfterFirstUnlock
	}
	item.Data = cloneBytes(item.Data)
	m.items[item.Query] = item
	return nil
}

// Update replaces the data of an existing item.
func (m *MemoryVault) Update(ctx context.Context, q Query, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("update", q); err != nil {
		return err
	}
	item, ok := m.items[q]
	if !ok {
		return statusError("update", StatusItemNotFound, nil)
	}
	item.Data = cloneBytes(data)
	m.items[q] = item
	return nil
}

// Delete removes an item.
func (m *MemoryVault) Delete(ctx context.Context, q Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("delete", q); err != nil {
		return err
	}
	if _, ok := m.items[q]; !ok {
		return statusError("delete", StatusItemNotFound, nil)
	}
	delete(m.items, q)
	return nil
}

// Copy returns the item at q.
func (m *MemoryVault) Copy(ctx context.Context, q Query) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.injected("copy", q); err != nil {
		return Item{}, err
	}
	item, ok := m.items[q]
	if !ok {
		return Item{}, statusError("copy", StatusItemNotFound, nil)
	}
	item.Data = cloneBytes(item.Data)
	return item, nil
}

// BackupItems lists items of service not excluded from backup, ordered by account.
func (m *MemoryVault) BackupItems(ctx context.Context, service string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []Item
	for q, item := range m.items {
		if q.Service != service || item.Attributes.ExcludeFromBackup {
			continue
		}
		item.Data = cloneBytes(item.Data)
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Account < items[j].Account
	})
	return items, nil
}

// Close is a no-op.
func (m *MemoryVault) Close() error {
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ Vault = (*MemoryVault)(nil)
