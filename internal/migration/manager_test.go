// ABOUTME: Tests for the settings migration manager
// ABOUTME: Covers no-op runs, chain migrations, version rejection, and failure wrapping

package migration

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/payload"
	"github.com/2389/tunnelvault/internal/relay"
	"github.com/2389/tunnelvault/internal/schema"
)

func v1Fixture() schema.TunnelSettingsV1 {
	return schema.TunnelSettingsV1{
		RelayConstraints: schema.RelayConstraintsV1{
			Location: relay.Only(relay.Host("se", "got", "se-got-wg-001")),
		},
		DNSSettings: schema.DNSSettings{
			BlockingOptions:  schema.BlockAdvertising | schema.BlockMalware,
			EnableCustomDNS:  true,
			CustomDNSDomains: []netip.Addr{netip.MustParseAddr("10.64.0.1")},
		},
	}
}

// fixtureAt returns the V1 fixture upgraded to version v.
func fixtureAt(t *testing.T, v schema.Version) schema.Record {
	t.Helper()
	var record schema.Record = v1Fixture()
	for record.Version() < v {
		next, ok := schema.Next(record)
		require.True(t, ok)
		record = next
	}
	return record
}

func seed(t *testing.T, store *keystore.MemoryStore, record schema.Record) []byte {
	t.Helper()
	data, err := schema.Encode(record)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), keystore.KeySettings, data))
	return data
}

func TestMigrate_FreshInstall(t *testing.T) {
	store := keystore.NewMemoryStore()
	m := NewManager(store)

	status := m.Detect(context.Background())
	assert.Equal(t, StateUpToDate, status.State)

	result, err := m.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultNothing, result)
	assert.Equal(t, 0, store.Writes())
}

func TestMigrate_CurrentIsNoop(t *testing.T) {
	store := keystore.NewMemoryStore()
	data := seed(t, store, schema.Default())
	writesBefore := store.Writes()

	m := NewManager(store)
	result, err := m.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultNothing, result)
	assert.Equal(t, writesBefore, store.Writes(), "an up to date record must not be rewritten")

	stored, err := store.Read(context.Background(), keystore.KeySettings)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestMigrate_EveryOlderVersion(t *testing.T) {
	for _, v := range schema.Versions() {
		if v == schema.Current {
			continue
		}
		t.Run(v.String(), func(t *testing.T) {
			store := keystore.NewMemoryStore()
			seed(t, store, fixtureAt(t, v))
			m := NewManager(store)

			status := m.Detect(context.Background())
			assert.Equal(t, StateNeedsMigration, status.State)
			assert.Equal(t, v, status.From)

			result, err := m.Migrate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, ResultSuccess, result)
			assert.Equal(t, 2, store.Writes(), "seed plus exactly one migration write")

			stored, err := store.Read(context.Background(), keystore.KeySettings)
			require.NoError(t, err)
			latest, err := schema.DecodeLatest(stored)
			require.NoError(t, err)
			assert.Equal(t, fixtureAt(t, schema.Current), latest)

			// Running again is a no-op.
			result, err = m.Migrate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, ResultNothing, result)
			assert.Equal(t, 2, store.Writes())
		})
	}
}

// Migrating V1 in one pass must give the same bytes as persisting and
// reloading the record at every intermediate version.
func TestMigrate_FullChainMatchesStepwise(t *testing.T) {
	store := keystore.NewMemoryStore()
	data := seed(t, store, v1Fixture())

	_, err := NewManager(store).Migrate(context.Background())
	require.NoError(t, err)
	direct, err := store.Read(context.Background(), keystore.KeySettings)
	require.NoError(t, err)

	stepwise := data
	for {
		record, err := schema.Decode(stepwise)
		require.NoError(t, err)
		next, ok := schema.Next(record)
		if !ok {
			break
		}
		stepwise, err = schema.Encode(next)
		require.NoError(t, err)
	}

	assert.Equal(t, stepwise, direct)
}

func TestMigrate_RejectsNewerVersion(t *testing.T) {
	store := keystore.NewMemoryStore()
	future, err := payload.ProducePayload(map[string]string{"fromTheFuture": "yes"}, int(schema.Current)+1)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), keystore.KeySettings, future))

	m := NewManager(store)
	status := m.Detect(context.Background())
	assert.Equal(t, StateFailed, status.State)
	assert.ErrorIs(t, status.Err, ErrUnsupportedVersion)

	result, err := m.Migrate(context.Background())
	assert.Equal(t, ResultFailed, result)
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	var migErr *Error
	require.True(t, errors.As(err, &migErr))
	assert.Equal(t, schema.Current+1, migErr.From)
	assert.Equal(t, schema.Current, migErr.To)

	assert.Equal(t, 1, store.Writes(), "a newer record must be left untouched")
	stored, err := store.Read(context.Background(), keystore.KeySettings)
	require.NoError(t, err)
	assert.Equal(t, future, stored)
}

func TestMigrate_DecodeFailureCarriesVersions(t *testing.T) {
	store := keystore.NewMemoryStore()
	// A current body under an older tag.
	mislabeled, err := payload.ProducePayload(schema.Default(), int(schema.V3))
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), keystore.KeySettings, mislabeled))

	result, err := NewManager(store).Migrate(context.Background())
	assert.Equal(t, ResultFailed, result)

	var migErr *Error
	require.True(t, errors.As(err, &migErr))
	assert.Equal(t, schema.V3, migErr.From)
	assert.Equal(t, schema.Current, migErr.To)

	var decodeErr *payload.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 1, store.Writes())
}

func TestMigrate_ZeroVersionIsUnknown(t *testing.T) {
	store := keystore.NewMemoryStore()
	data, err := payload.ProducePayload(struct{}{}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), keystore.KeySettings, data))

	result, err := NewManager(store).Migrate(context.Background())
	assert.Equal(t, ResultFailed, result)
	assert.ErrorIs(t, err, schema.ErrUnknownVersion)
}

func TestMigrate_MalformedPayload(t *testing.T) {
	store := keystore.NewMemoryStore()
	unversioned, err := payload.ProduceUnversionedPayload(schema.Default())
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), keystore.KeySettings, unversioned))

	result, err := NewManager(store).Migrate(context.Background())
	assert.Equal(t, ResultFailed, result)
	assert.ErrorIs(t, err, payload.ErrNotVersioned)

	var migErr *Error
	require.True(t, errors.As(err, &migErr))
	assert.Equal(t, schema.Version(0), migErr.From)
	assert.Equal(t, schema.Current, migErr.To)
}

func TestMigrate_ReadFailure(t *testing.T) {
	store := keystore.NewMemoryStore()
	store.FailWith(func(op string, key keystore.Key) error {
		return &keystore.Error{Op: op, Key: key, Kind: keystore.ErrAccessDenied}
	})

	m := NewManager(store)
	status := m.Detect(context.Background())
	assert.Equal(t, StateFailed, status.State)

	result, err := m.Migrate(context.Background())
	assert.Equal(t, ResultFailed, result)
	assert.ErrorIs(t, err, keystore.ErrAccessDenied)

	var migErr *Error
	require.True(t, errors.As(err, &migErr))
	assert.Equal(t, schema.Current, migErr.To)
}

func TestMigrate_CorruptEntryIsMigrationError(t *testing.T) {
	store := keystore.NewMemoryStore()
	store.FailWith(func(op string, key keystore.Key) error {
		return &keystore.Error{Op: op, Key: key, Kind: keystore.ErrCorruptEntry}
	})

	result, err := NewManager(store).Migrate(context.Background())
	assert.Equal(t, ResultFailed, result)
	assert.ErrorIs(t, err, keystore.ErrCorruptEntry)

	var migErr *Error
	require.True(t, errors.As(err, &migErr))
	assert.Contains(t, err.Error(), "migrating settings from v0 to v8")
}

func TestMigrate_WriteFailure(t *testing.T) {
	store := keystore.NewMemoryStore()
	seed(t, store, fixtureAt(t, schema.V5))
	store.FailWith(func(op string, key keystore.Key) error {
		if op == "write" {
			return &keystore.Error{Op: op, Key: key, Kind: keystore.ErrAccessDenied}
		}
		return nil
	})

	result, err := NewManager(store).Migrate(context.Background())
	assert.Equal(t, ResultFailed, result)
	assert.ErrorIs(t, err, keystore.ErrAccessDenied)

	var migErr *Error
	require.True(t, errors.As(err, &migErr))
	assert.Equal(t, schema.V5, migErr.From)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "needs migration", StateNeedsMigration.String())
	assert.Equal(t, "success", ResultSuccess.String())
}
