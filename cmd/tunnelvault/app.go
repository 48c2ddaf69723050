// ABOUTME: Wires the vault, store, migration manager and repositories from config
// ABOUTME: Mirrors process startup: open the vault, then migrate before any slot is used

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/tunnelvault/internal/config"
	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/migration"
	"github.com/2389/tunnelvault/internal/repository"
	"github.com/2389/tunnelvault/internal/settings"
	"github.com/2389/tunnelvault/internal/vault"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	vault  *vault.SQLiteVault
	secure *keystore.SecureStore
	store  keystore.Store

	migrator       *migration.Manager
	settings       *settings.Manager
	accessMethods  *repository.AccessMethodRepository
	customLists    *repository.CustomListRepository
	ipOverrides    *repository.IPOverrideRepository
	recentConnects *repository.RecentConnectionsRepository
}

// openApp opens the vault described by cfg. Component loggers derive from
// the default logger, so it is installed before anything is constructed.
func openApp(cfg *config.Config) (*app, error) {
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	key, err := vault.LoadOrCreateKey(cfg.Vault.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading vault key: %w", err)
	}

	v, err := vault.NewSQLiteVault(cfg.Vault.Path, key)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}

	coord, err := keystore.NewFileCoordinator(cfg.Vault.LockFile)
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("creating store coordinator: %w", err)
	}

	secure := keystore.NewSecureStore(v, coord, cfg.Vault.Service)
	store := keystore.NewRetryingStore(
		secure,
		keystore.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		},
	)

	return &app{
		cfg:            cfg,
		logger:         logger.With("component", "cli"),
		vault:          v,
		secure:         secure,
		store:          store,
		migrator:       migration.NewManager(store),
		settings:       settings.NewManager(store),
		accessMethods:  repository.NewAccessMethodRepository(store),
		customLists:    repository.NewCustomListRepository(store),
		ipOverrides:    repository.NewIPOverrideRepository(store),
		recentConnects: repository.NewRecentConnectionsRepository(store, cfg.Repositories.RecentConnectionsLimit),
	}, nil
}

func (a *app) Close() error {
	a.accessMethods.Close()
	a.customLists.Close()
	a.ipOverrides.Close()
	a.recentConnects.Close()
	return a.vault.Close()
}

// startup runs the startup migration policy. A failed migration that reset
// the settings is reported but does not stop the command. A failed reset does.
func (a *app) startup(ctx context.Context) error {
	result, err := a.settings.MigrateStore(ctx, a.migrator)
	if err == nil {
		if result == migration.ResultSuccess {
			a.logger.Info("settings migrated")
		}
		return nil
	}
	if errors.Is(err, keystore.ErrAccessDenied) {
		return fmt.Errorf("store unavailable: %w", err)
	}
	if errors.Is(err, settings.ErrResetFailed) {
		return err
	}
	a.logger.Warn("settings were reset after a failed migration", "error", err)
	return nil
}

// withApp loads config, opens the app, optionally runs startup, and calls fn.
func withApp(ctx context.Context, startup bool, fn func(*app) error) (err error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing vault: %w", closeErr)
		}
	}()

	if startup {
		if err := a.startup(ctx); err != nil {
			return err
		}
	}
	return fn(a)
}
