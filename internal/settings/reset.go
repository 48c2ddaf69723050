// ABOUTME: Store reset and startup migration policy
// ABOUTME: Wipe requests clear every slot, failed migrations clear the settings slot only

package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/migration"
)

// ErrResetFailed is reported by MigrateStore when a failed migration could
// not be recovered because resetting the settings slot also failed.
var ErrResetFailed = errors.New("settings reset after failed migration did not complete")

// ResetStore deletes the settings slot, or every slot when completely is set.
// Empty slots are skipped.
func (m *Manager) ResetStore(ctx context.Context, completely bool) error {
	keys := []keystore.Key{keystore.KeySettings}
	if completely {
		keys = keystore.AllKeys()
	}

	var errs []error
	for _, key := range keys {
		err := m.store.Delete(ctx, key)
		if err != nil && !errors.Is(err, keystore.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	m.logger.Info("reset store", "completely", completely)
	return nil
}

// MigrateStore prepares the store for use at process start. A pending wipe
// request resets every slot first. Otherwise the settings record is migrated
// and, if that fails for any reason other than the store being unavailable,
// the settings slot is reset so the next read returns defaults.
//
// The returned error is the migration failure, reported even when the
// reset recovered from it. When the reset fails too, the error also matches
// ErrResetFailed.
func (m *Manager) MigrateStore(ctx context.Context, migrator *migration.Manager) (migration.Result, error) {
	wipe, err := m.ShouldWipeSettings(ctx)
	if err != nil {
		return migration.ResultFailed, err
	}
	if wipe {
		m.logger.Warn("wipe requested, resetting all slots")
		if err := m.ResetStore(ctx, true); err != nil {
			return migration.ResultFailed, err
		}
		return migration.ResultNothing, nil
	}

	result, err := migrator.Migrate(ctx)
	if result != migration.ResultFailed {
		return result, nil
	}

	if errors.Is(err, keystore.ErrAccessDenied) {
		m.logger.Warn("store unavailable, leaving settings for the next attempt", "error", err)
		return result, err
	}

	m.logger.Warn("settings migration failed, resetting settings", "error", err)
	if resetErr := m.ResetStore(ctx, false); resetErr != nil {
		return result, errors.Join(err, fmt.Errorf("%w: %w", ErrResetFailed, resetErr))
	}
	return result, err
}
