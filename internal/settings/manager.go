// ABOUTME: Settings manager reading and writing the latest settings record
// ABOUTME: Also owns the last-used-account and should-wipe slots

package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/schema"
)

// ErrInvalidAccount is returned for account numbers that are not valid UTF-8.
var ErrInvalidAccount = errors.New("account number is not valid UTF-8")

// Manager reads and writes settings slots of a store.
type Manager struct {
	store  keystore.Store
	logger *slog.Logger
}

// NewManager creates a Manager on store.
func NewManager(store keystore.Store) *Manager {
	return &Manager{
		store:  store,
		logger: slog.Default().With("component", "settings"),
	}
}

// ReadSettings returns the stored settings, or the defaults when none are stored.
func (m *Manager) ReadSettings(ctx context.Context) (schema.LatestSettings, error) {
	data, err := m.store.Read(ctx, keystore.KeySettings)
	if errors.Is(err, keystore.ErrNotFound) {
		return schema.Default(), nil
	}
	if err != nil {
		return schema.LatestSettings{}, fmt.Errorf("reading settings: %w", err)
	}

	s, err := schema.DecodeLatest(data)
	if err != nil {
		return schema.LatestSettings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

// WriteSettings stores s as the current settings record.
func (m *Manager) WriteSettings(ctx context.Context, s schema.LatestSettings) error {
	data, err := schema.Encode(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := m.store.Write(ctx, keystore.KeySettings, data); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// UpdateSettings reads the settings, applies fn, and writes the result.
func (m *Manager) UpdateSettings(ctx context.Context, fn func(*schema.LatestSettings)) (schema.LatestSettings, error) {
	s, err := m.ReadSettings(ctx)
	if err != nil {
		return schema.LatestSettings{}, err
	}
	fn(&s)
	if err := m.WriteSettings(ctx, s); err != nil {
		return schema.LatestSettings{}, err
	}
	return s, nil
}

// LastUsedAccount returns the last account number used to log in, or "" if none.
func (m *Manager) LastUsedAccount(ctx context.Context) (string, error) {
	data, err := m.store.Read(ctx, keystore.KeyLastUsedAccount)
	if errors.Is(err, keystore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading last used account: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("reading last used account: %w", ErrInvalidAccount)
	}
	return string(data), nil
}

// SetLastUsedAccount stores account as raw UTF-8. An empty account clears the slot.
func (m *Manager) SetLastUsedAccount(ctx context.Context, account string) error {
	if account == "" {
		err := m.store.Delete(ctx, keystore.KeyLastUsedAccount)
		if err != nil && !errors.Is(err, keystore.ErrNotFound) {
			return fmt.Errorf("clearing last used account: %w", err)
		}
		return nil
	}
	if !utf8.ValidString(account) {
		return ErrInvalidAccount
	}
	if err := m.store.Write(ctx, keystore.KeyLastUsedAccount, []byte(account)); err != nil {
		return fmt.Errorf("writing last used account: %w", err)
	}
	return nil
}

// ShouldWipeSettings reports whether a wipe has been requested.
func (m *Manager) ShouldWipeSettings(ctx context.Context) (bool, error) {
	_, err := m.store.Read(ctx, keystore.KeyShouldWipeSettings)
	if errors.Is(err, keystore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading wipe request: %w", err)
	}
	return true, nil
}

// SetShouldWipeSettings requests a full reset on the next MigrateStore.
func (m *Manager) SetShouldWipeSettings(ctx context.Context) error {
	if err := m.store.Write(ctx, keystore.KeyShouldWipeSettings, []byte{}); err != nil {
		return fmt.Errorf("writing wipe request: %w", err)
	}
	return nil
}

// ClearShouldWipeSettings withdraws a wipe request.
func (m *Manager) ClearShouldWipeSettings(ctx context.Context) error {
	err := m.store.Delete(ctx, keystore.KeyShouldWipeSettings)
	if err != nil && !errors.Is(err, keystore.ErrNotFound) {
		return fmt.Errorf("clearing wipe request: %w", err)
	}
	return nil
}
