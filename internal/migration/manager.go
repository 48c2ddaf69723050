// ABOUTME: Migration manager that upgrades the stored settings record in place
// ABOUTME: Detects the stored version, walks the chain, and writes back once

package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/payload"
	"github.com/2389/tunnelvault/internal/schema"
)

// State classifies the stored settings record.
type State int

const (
	StateUpToDate State = iota
	StateNeedsMigration
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUpToDate:
		return "up to date"
	case StateNeedsMigration:
		return "needs migration"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the outcome of Detect.
type Status struct {
	State State
	// From is the stored version. Zero when the slot is empty.
	From schema.Version
	// Err is set when State is StateFailed.
	Err error
}

// Result is the outcome of Migrate.
type Result int

const (
	ResultNothing Result = iota
	ResultSuccess
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultNothing:
		return "nothing"
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Manager migrates the settings slot of a store.
type Manager struct {
	store  keystore.Store
	logger *slog.Logger
}

// NewManager creates a Manager for store.
func NewManager(store keystore.Store) *Manager {
	return &Manager{
		store:  store,
		logger: slog.Default().With("component", "migration"),
	}
}

// Detect reports whether the stored settings record needs migration.
func (m *Manager) Detect(ctx context.Context) Status {
	status, _ := m.detect(ctx)
	return status
}

func (m *Manager) detect(ctx context.Context) (Status, []byte) {
	data, err := m.store.Read(ctx, keystore.KeySettings)
	if errors.Is(err, keystore.ErrNotFound) {
		return Status{State: StateUpToDate}, nil
	}
	if err != nil {
		return Status{
			State: StateFailed,
			Err:   &Error{To: schema.Current, Err: fmt.Errorf("reading settings: %w", err)},
		}, nil
	}

	raw, err := payload.ParseVersion(data)
	if err != nil {
		return Status{
			State: StateFailed,
			Err:   &Error{To: schema.Current, Err: fmt.Errorf("reading settings version: %w", err)},
		}, nil
	}
	tag := schema.Version(raw)

	switch {
	case tag == schema.Current:
		return Status{State: StateUpToDate, From: tag}, data
	case tag.IsNewerThanCurrent():
		return Status{
			State: StateFailed,
			From:  tag,
			Err:   &Error{From: tag, To: schema.Current, Err: ErrUnsupportedVersion},
		}, nil
	case !tag.Valid():
		return Status{
			State: StateFailed,
			From:  tag,
			Err:   &Error{From: tag, To: schema.Current, Err: schema.ErrUnknownVersion},
		}, nil
	default:
		return Status{State: StateNeedsMigration, From: tag}, data
	}
}

// Migrate upgrades the stored settings record to schema.Current. The store
// is written at most once, and only when a migration succeeds.
func (m *Manager) Migrate(ctx context.Context) (Result, error) {
	status, data := m.detect(ctx)
	switch status.State {
	case StateUpToDate:
		m.logger.Debug("settings are up to date", "version", status.From)
		return ResultNothing, nil
	case StateFailed:
		m.logger.Error("cannot migrate settings", "error", status.Err)
		return ResultFailed, status.Err
	}

	from := status.From
	fail := func(err error) (Result, error) {
		err = &Error{From: from, To: schema.Current, Err: err}
		m.logger.Error("settings migration failed", "from", from, "to", schema.Current, "error", err)
		return ResultFailed, err
	}

	record, err := schema.DecodeAs(data, from)
	if err != nil {
		return fail(err)
	}

	upgraded, err := upgrade(record)
	if err != nil {
		return fail(err)
	}

	encoded, err := schema.Encode(upgraded)
	if err != nil {
		return fail(err)
	}
	if err := m.store.Write(ctx, keystore.KeySettings, encoded); err != nil {
		return fail(fmt.Errorf("writing settings: %w", err))
	}

	m.logger.Info("migrated settings", "from", from, "to", schema.Current)
	return ResultSuccess, nil
}

// upgrade walks record forward to schema.Current one version at a time.
func upgrade(record schema.Record) (schema.Record, error) {
	for record.Version() != schema.Current {
		next, ok := schema.Next(record)
		if !ok {
			return nil, fmt.Errorf("no upgrade from %s", record.Version())
		}
		if next.Version() != record.Version()+1 {
			return nil, fmt.Errorf("upgrade from %s produced %s", record.Version(), next.Version())
		}
		record = next
	}
	return record, nil
}
