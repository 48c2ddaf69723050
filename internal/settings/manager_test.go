// ABOUTME: Tests for the settings manager
// ABOUTME: Covers defaults, account slots, device state, and the startup migration policy

package settings

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/migration"
	"github.com/2389/tunnelvault/internal/payload"
	"github.com/2389/tunnelvault/internal/relay"
	"github.com/2389/tunnelvault/internal/schema"
)

func newTestManager(t *testing.T) (*Manager, *keystore.MemoryStore) {
	t.Helper()
	store := keystore.NewMemoryStore()
	return NewManager(store), store
}

func loggedInFixture() DeviceState {
	return LoggedIn(
		StoredAccountData{
			Identifier: "acc-1",
			Number:     "1234123412341234",
			Expiry:     time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		StoredDeviceData{
			Identifier:  "dev-1",
			Name:        "happy otter",
			Created:     time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			HijackDNS:   true,
			IPv4Address: netip.MustParsePrefix("10.139.0.2/32"),
			IPv6Address: netip.MustParsePrefix("fc00:bbbb:bbbb:bb01::2/128"),
		},
	)
}

func TestReadSettings_DefaultsWhenEmpty(t *testing.T) {
	m, _ := newTestManager(t)

	s, err := m.ReadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schema.Default(), s)
}

func TestWriteAndReadSettings(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s := schema.Default()
	s.TunnelMultihopState = schema.MultihopOn
	s.IPVersion = schema.IPVersionIPv6
	require.NoError(t, m.WriteSettings(ctx, s))

	got, err := m.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	data, err := store.Read(ctx, keystore.KeySettings)
	require.NoError(t, err)
	version, err := payload.ParseVersion(data)
	require.NoError(t, err)
	assert.Equal(t, int(schema.Current), version)
}

func TestUpdateSettings(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	updated, err := m.UpdateSettings(ctx, func(s *schema.LatestSettings) {
		s.DAITA.DAITAState = schema.DAITAOn
	})
	require.NoError(t, err)
	assert.Equal(t, schema.DAITAOn, updated.DAITA.DAITAState)

	got, err := m.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.DAITAOn, got.DAITA.DAITAState)
}

func TestWriteSettings_RejectsInvalid(t *testing.T) {
	m, store := newTestManager(t)

	s := schema.Default()
	s.TunnelQuantumResistance = "maybe"
	assert.Error(t, m.WriteSettings(context.Background(), s))
	assert.Equal(t, 0, store.Writes())
}

func TestReadSettings_RejectsOutdatedRecord(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	old, err := schema.Encode(schema.TunnelSettingsV1{})
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, keystore.KeySettings, old))

	_, err = m.ReadSettings(ctx)
	assert.ErrorIs(t, err, payload.ErrVersionMismatch)
}

func TestLastUsedAccount(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	account, err := m.LastUsedAccount(ctx)
	require.NoError(t, err)
	assert.Empty(t, account)

	require.NoError(t, m.SetLastUsedAccount(ctx, "1234123412341234"))
	raw, err := store.Read(ctx, keystore.KeyLastUsedAccount)
	require.NoError(t, err)
	assert.Equal(t, []byte("1234123412341234"), raw, "stored as raw UTF-8")

	account, err = m.LastUsedAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1234123412341234", account)

	require.NoError(t, m.SetLastUsedAccount(ctx, ""))
	_, err = store.Read(ctx, keystore.KeyLastUsedAccount)
	assert.ErrorIs(t, err, keystore.ErrNotFound)

	// Clearing an empty slot is fine.
	require.NoError(t, m.SetLastUsedAccount(ctx, ""))
	assert.ErrorIs(t, m.SetLastUsedAccount(ctx, "\xff\xfe"), ErrInvalidAccount)
}

func TestShouldWipeSettings(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	wipe, err := m.ShouldWipeSettings(ctx)
	require.NoError(t, err)
	assert.False(t, wipe)

	require.NoError(t, m.SetShouldWipeSettings(ctx))
	wipe, err = m.ShouldWipeSettings(ctx)
	require.NoError(t, err)
	assert.True(t, wipe)

	require.NoError(t, m.ClearShouldWipeSettings(ctx))
	require.NoError(t, m.ClearShouldWipeSettings(ctx))
	wipe, err = m.ShouldWipeSettings(ctx)
	require.NoError(t, err)
	assert.False(t, wipe)
}

func TestDeviceState(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	state, err := m.ReadDeviceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, DeviceLoggedOut, state.Kind)

	for _, want := range []DeviceState{loggedInFixture(), Revoked(), LoggedOut()} {
		require.NoError(t, m.WriteDeviceState(ctx, want))
		got, err := m.ReadDeviceState(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDeviceState_RejectsUnknownTags(t *testing.T) {
	for _, input := range []string{`{}`, `{"loggedOut":{},"revoked":{}}`, `{"suspended":{}}`, `{"revoked":{"why":1}}`} {
		var d DeviceState
		assert.Error(t, d.UnmarshalJSON([]byte(input)), input)
	}

	_, err := LoggedOut().MarshalJSON()
	require.NoError(t, err)
	_, err = DeviceState{Kind: DeviceLoggedIn}.MarshalJSON()
	assert.Error(t, err)
}

func TestResetStore(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.WriteSettings(ctx, schema.Default()))
	require.NoError(t, m.WriteDeviceState(ctx, loggedInFixture()))
	require.NoError(t, m.SetLastUsedAccount(ctx, "1234"))

	require.NoError(t, m.ResetStore(ctx, false))
	_, err := store.Read(ctx, keystore.KeySettings)
	assert.ErrorIs(t, err, keystore.ErrNotFound)
	state, err := m.ReadDeviceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, DeviceLoggedIn, state.Kind)

	require.NoError(t, m.ResetStore(ctx, true))
	for _, key := range keystore.AllKeys() {
		_, err := store.Read(ctx, key)
		assert.ErrorIs(t, err, keystore.ErrNotFound, key.String())
	}
}

// A fresh install reads defaults, migrates nothing, and persists the first write as current.
func TestFreshInstall(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	result, err := m.MigrateStore(ctx, migration.NewManager(store))
	require.NoError(t, err)
	assert.Equal(t, migration.ResultNothing, result)
	assert.Equal(t, 0, store.Writes())

	s, err := m.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.Default(), s)

	exit, _ := s.RelayConstraints.ExitLocations.Value()
	exit.Locations = []relay.RelayLocation{relay.City("se", "sto")}
	s.RelayConstraints.ExitLocations = relay.Only(exit)
	require.NoError(t, m.WriteSettings(ctx, s))

	data, err := store.Read(ctx, keystore.KeySettings)
	require.NoError(t, err)
	version, err := payload.ParseVersion(data)
	require.NoError(t, err)
	assert.Equal(t, int(schema.Current), version)
}

func TestMigrateStore_MigratesOldRecord(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	old, err := schema.Encode(schema.TunnelSettingsV6{
		RelayConstraints:        schema.DefaultRelayConstraints(),
		WireGuardObfuscation:    schema.DefaultObfuscationSettings(),
		TunnelQuantumResistance: schema.QuantumResistanceOff,
		TunnelMultihopState:     schema.MultihopOff,
		DAITA:                   schema.DAITASettingsV6{DAITAState: schema.DAITAOn},
	})
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, keystore.KeySettings, old))

	result, err := m.MigrateStore(ctx, migration.NewManager(store))
	require.NoError(t, err)
	assert.Equal(t, migration.ResultSuccess, result)

	s, err := m.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.DAITAOn, s.DAITA.DAITAState)
	assert.Equal(t, schema.DirectOnlyOff, s.DAITA.DirectOnlyState)
	assert.Equal(t, schema.QuantumResistanceOff, s.TunnelQuantumResistance)
}

func TestMigrateStore_FailureResetsSettingsOnly(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	garbage, err := payload.ProducePayload(map[string]int{"nonsense": 1}, int(schema.V4))
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, keystore.KeySettings, garbage))
	require.NoError(t, m.WriteDeviceState(ctx, loggedInFixture()))
	require.NoError(t, m.SetLastUsedAccount(ctx, "1234123412341234"))

	result, err := m.MigrateStore(ctx, migration.NewManager(store))
	assert.Equal(t, migration.ResultFailed, result)
	var migErr *migration.Error
	require.ErrorAs(t, err, &migErr)
	assert.Equal(t, schema.V4, migErr.From)

	s, err := m.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.Default(), s)

	state, err := m.ReadDeviceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, loggedInFixture(), state)

	account, err := m.LastUsedAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1234123412341234", account)
}

func TestMigrateStore_ReportsFailedReset(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	garbage, err := payload.ProducePayload(map[string]int{"nonsense": 1}, int(schema.V4))
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, keystore.KeySettings, garbage))

	store.FailWith(func(op string, key keystore.Key) error {
		if op == "delete" {
			return &keystore.Error{Op: op, Key: key, Err: errors.New("disk I/O error")}
		}
		return nil
	})

	result, err := m.MigrateStore(ctx, migration.NewManager(store))
	assert.Equal(t, migration.ResultFailed, result)
	assert.ErrorIs(t, err, ErrResetFailed)
	var migErr *migration.Error
	assert.ErrorAs(t, err, &migErr)

	store.FailWith(nil)
	data, err := store.Read(ctx, keystore.KeySettings)
	require.NoError(t, err)
	assert.Equal(t, garbage, data)
}

func TestMigrateStore_RecoveredFailureIsNotResetFailure(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	garbage, err := payload.ProducePayload(map[string]int{"nonsense": 1}, int(schema.V4))
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, keystore.KeySettings, garbage))

	_, err = m.MigrateStore(ctx, migration.NewManager(store))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrResetFailed)
}

func TestMigrateStore_NewerVersionResetsSettings(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	future, err := payload.ProducePayload(map[string]int{}, int(schema.Current)+1)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, keystore.KeySettings, future))

	_, err = m.MigrateStore(ctx, migration.NewManager(store))
	assert.ErrorIs(t, err, migration.ErrUnsupportedVersion)

	_, err = store.Read(ctx, keystore.KeySettings)
	assert.ErrorIs(t, err, keystore.ErrNotFound)
}

func TestMigrateStore_AccessDeniedKeepsSettings(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	old, err := schema.Encode(schema.TunnelSettingsV1{})
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, keystore.KeySettings, old))

	store.FailWith(func(op string, key keystore.Key) error {
		if op == "write" {
			return &keystore.Error{Op: op, Key: key, Kind: keystore.ErrAccessDenied}
		}
		return nil
	})

	result, err := m.MigrateStore(ctx, migration.NewManager(store))
	assert.Equal(t, migration.ResultFailed, result)
	assert.ErrorIs(t, err, keystore.ErrAccessDenied)
	assert.Equal(t, 0, store.Deletes())

	store.FailWith(nil)
	data, err := store.Read(ctx, keystore.KeySettings)
	require.NoError(t, err)
	assert.Equal(t, old, data)
}

func TestMigrateStore_WipeRequest(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.WriteSettings(ctx, schema.Default()))
	require.NoError(t, m.WriteDeviceState(ctx, loggedInFixture()))
	require.NoError(t, m.SetShouldWipeSettings(ctx))

	result, err := m.MigrateStore(ctx, migration.NewManager(store))
	require.NoError(t, err)
	assert.Equal(t, migration.ResultNothing, result)

	wipe, err := m.ShouldWipeSettings(ctx)
	require.NoError(t, err)
	assert.False(t, wipe, "wipe request is cleared by the reset")

	state, err := m.ReadDeviceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, DeviceLoggedOut, state.Kind)
}
