// ABOUTME: Device state slot: logged in with account and device, logged out, or revoked
// ABOUTME: Stored as an unversioned payload of a single-key tagged object

package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/payload"
)

// DeviceStateKind tags the device state union.
type DeviceStateKind string

const (
	DeviceLoggedIn  DeviceStateKind = "loggedIn"
	DeviceLoggedOut DeviceStateKind = "loggedOut"
	DeviceRevoked   DeviceStateKind = "revoked"
)

// StoredAccountData identifies the logged in account.
type StoredAccountData struct {
	Identifier string    `json:"identifier"`
	Number     string    `json:"number"`
	Expiry     time.Time `json:"expiry"`
}

// StoredDeviceData describes this device as registered with the account.
type StoredDeviceData struct {
	Identifier  string       `json:"identifier"`
	Name        string       `json:"name"`
	Created     time.Time    `json:"creationDate"`
	HijackDNS   bool         `json:"hijackDNS"`
	IPv4Address netip.Prefix `json:"ipv4Address"`
	IPv6Address netip.Prefix `json:"ipv6Address"`
}

// DeviceState is the login state of this device. Account and Device are set
// only when Kind is DeviceLoggedIn.
type DeviceState struct {
	Kind    DeviceStateKind
	Account *StoredAccountData
	Device  *StoredDeviceData
}

// LoggedIn returns a logged in state.
func LoggedIn(account StoredAccountData, device StoredDeviceData) DeviceState {
	return DeviceState{Kind: DeviceLoggedIn, Account: &account, Device: &device}
}

// LoggedOut returns the logged out state.
func LoggedOut() DeviceState {
	return DeviceState{Kind: DeviceLoggedOut}
}

// Revoked returns the state of a device removed from its account.
func Revoked() DeviceState {
	return DeviceState{Kind: DeviceRevoked}
}

type loggedInBody struct {
	Account StoredAccountData `json:"account"`
	Device  StoredDeviceData  `json:"device"`
}

func (d DeviceState) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DeviceLoggedIn:
		if d.Account == nil || d.Device == nil {
			return nil, errors.New("logged in device state without account or device")
		}
		return json.Marshal(map[string]loggedInBody{
			string(DeviceLoggedIn): {Account: *d.Account, Device: *d.Device},
		})
	case DeviceLoggedOut, DeviceRevoked:
		return json.Marshal(map[string]struct{}{string(d.Kind): {}})
	}
	return nil, fmt.Errorf("unknown device state %q", d.Kind)
}

func (d *DeviceState) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("decoding device state: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("decoding device state: expected one tag, got %d", len(tagged))
	}

	for tag, body := range tagged {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()

		switch DeviceStateKind(tag) {
		case DeviceLoggedIn:
			var in loggedInBody
			if err := dec.Decode(&in); err != nil {
				return fmt.Errorf("decoding logged in state: %w", err)
			}
			*d = LoggedIn(in.Account, in.Device)
		case DeviceLoggedOut, DeviceRevoked:
			var empty struct{}
			if err := dec.Decode(&empty); err != nil {
				return fmt.Errorf("decoding %s state: %w", tag, err)
			}
			*d = DeviceState{Kind: DeviceStateKind(tag)}
		default:
			return fmt.Errorf("unknown device state %q", tag)
		}
	}
	return nil
}

// ReadDeviceState returns the stored device state, or logged out when none is stored.
func (m *Manager) ReadDeviceState(ctx context.Context) (DeviceState, error) {
	data, err := m.store.Read(ctx, keystore.KeyDeviceState)
	if errors.Is(err, keystore.ErrNotFound) {
		return LoggedOut(), nil
	}
	if err != nil {
		return DeviceState{}, fmt.Errorf("reading device state: %w", err)
	}
	state, err := payload.ParseUnversionedPayload[DeviceState](data)
	if err != nil {
		return DeviceState{}, fmt.Errorf("decoding device state: %w", err)
	}
	return state, nil
}

// WriteDeviceState stores state.
func (m *Manager) WriteDeviceState(ctx context.Context, state DeviceState) error {
	data, err := payload.ProduceUnversionedPayload(state)
	if err != nil {
		return fmt.Errorf("encoding device state: %w", err)
	}
	if err := m.store.Write(ctx, keystore.KeyDeviceState, data); err != nil {
		return fmt.Errorf("writing device state: %w", err)
	}
	return nil
}
