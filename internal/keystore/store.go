// ABOUTME: Store contract and the vault-backed SecureStore implementation
// ABOUTME: Every operation runs under the coordinator as a single vault step

package keystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/tunnelvault/internal/vault"
)

// Store is the keyed secure store contract.
type Store interface {
	// Read returns the value at key. Returns ErrNotFound if the slot is empty.
	Read(ctx context.Context, key Key) ([]byte, error)

	// Write stores data at key, replacing any previous value.
	Write(ctx context.Context, key Key, data []byte) error

	// Delete removes the value at key. Returns ErrNotFound if the slot is empty.
	Delete(ctx context.Context, key Key) error

	// ExcludeFromBackup marks the value at key as excluded from device backups.
	// It is idempotent and does nothing for an empty slot.
	ExcludeFromBackup(ctx context.Context, key Key) error
}

// SecureStore implements Store on a vault.Vault.
type SecureStore struct {
	vault   vault.Vault
	coord   Coordinator
	service string
	logger  *slog.Logger
}

// NewSecureStore creates a store whose slots are vault items of service.
func NewSecureStore(v vault.Vault, coord Coordinator, service string) *SecureStore {
	return &SecureStore{
		vault:   v,
		coord:   coord,
		service: service,
		logger:  slog.Default().With("component", "keystore"),
	}
}

func (s *SecureStore) query(key Key) vault.Query {
	return vault.Query{Service: s.service, Account: string(key)}
}

// Read returns the value stored at key.
func (s *SecureStore) Read(ctx context.Context, key Key) ([]byte, error) {
	if !key.Valid() {
		return nil, &Error{Op: "read", Key: key, Kind: ErrUnknownKey}
	}

	var data []byte
	err := withCoordination(s.coord, func() error {
		item, err := s.vault.Copy(ctx, s.query(key))
		if err != nil {
			return err
		}
		data = item.Data
		return nil
	})
	if err != nil {
		return nil, s.fail("read", key, err)
	}
	return data, nil
}

// Write updates the item at key, adding it with default attributes if absent.
func (s *SecureStore) Write(ctx context.Context, key Key, data []byte) error {
	if !key.Valid() {
		return &Error{Op: "write", Key: key, Kind: ErrUnknownKey}
	}

	err := withCoordination(s.coord, func() error {
		err := s.vault.Update(ctx, s.query(key), data)
		if !errors.Is(err, vault.ErrItemNotFound) {
			return err
		}
		return s.vault.Add(ctx, vault.Item{
			Query:      s.query(key),
			Data:       data,
			Attributes: vault.Attributes{Accessibility: vault.AccessibleAfterFirstUnlock},
		})
	})
	if err != nil {
		return s.fail("write", key, err)
	}

	s.logger.Debug("wrote slot", "key", key, "size", len(data))
	return nil
}

// Delete removes the item at key.
func (s *SecureStore) Delete(ctx context.Context, key Key) error {
	if !key.Valid() {
		return &Error{Op: "delete", Key: key, Kind: ErrUnknownKey}
	}

	err := withCoordination(s.coord, func() error {
		return s.vault.Delete(ctx, s.query(key))
	})
	if err != nil {
		return s.fail("delete", key, err)
	}

	s.logger.Debug("deleted slot", "key", key)
	return nil
}

// ExcludeFromBackup re-adds the item at key with backup exclusion set. The
// copy, delete and add run as one coordinated step on the vault directly.
func (s *SecureStore) ExcludeFromBackup(ctx context.Context, key Key) error {
	if !key.Valid() {
		return &Error{Op: "exclude from backup", Key: key, Kind: ErrUnknownKey}
	}

	var changed bool
	err := withCoordination(s.coord, func() error {
		q := s.query(key)
		item, err := s.vault.Copy(ctx, q)
		if errors.Is(err, vault.ErrItemNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if item.Attributes.ExcludeFromBackup {
			return nil
		}

		if err := s.vault.Delete(ctx, q); err != nil {
			return err
		}
		excluded := item
		excluded.Attributes.ExcludeFromBackup = true
		if err := s.vault.Add(ctx, excluded); err != nil {
			// Put the original back so the value is not lost.
			if restoreErr := s.vault.Add(ctx, item); restoreErr != nil {
				return errors.Join(err, fmt.Errorf("restoring %s: %w", q, restoreErr))
			}
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return s.fail("exclude from backup", key, err)
	}

	if changed {
		s.logger.Info("excluded slot from backup", "key", key)
	}
	return nil
}

// BackedUpKeys lists the slots holding a value that device backups would copy.
func (s *SecureStore) BackedUpKeys(ctx context.Context) ([]Key, error) {
	var items []vault.Item
	err := withCoordination(s.coord, func() error {
		var err error
		items, err = s.vault.BackupItems(ctx, s.service)
		return err
	})
	if err != nil {
		return nil, s.fail("list backup", "", err)
	}

	keys := make([]Key, 0, len(items))
	for _, item := range items {
		if key := Key(item.Account); key.Valid() {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *SecureStore) fail(op string, key Key, err error) error {
	err = storeError(op, key, err)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("slot is empty", "op", op, "key", key)
	} else {
		s.logger.Error("store operation failed", "op", op, "key", key, "error", err)
	}
	return err
}

// ExcludeAllFromBackup excludes every known slot of s from backups.
func ExcludeAllFromBackup(ctx context.Context, s Store) error {
	var errs []error
	for _, key := range AllKeys() {
		if err := s.ExcludeFromBackup(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Store = (*SecureStore)(nil)
