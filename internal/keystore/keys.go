// ABOUTME: Fixed set of slot keys addressable in the secure store
// ABOUTME: Each key maps to one vault account under the configured service

package keystore

// Key names a persisted slot.
type Key string

const (
	KeySettings           Key = "settings"
	KeyDeviceState        Key = "device-state"
	KeyAccessMethods      Key = "access-methods"
	KeyIPOverrides        Key = "ip-overrides"
	KeyCustomRelayLists   Key = "custom-relay-lists"
	KeyRecentConnections  Key = "recent-connections"
	KeyLastUsedAccount    Key = "last-used-account"
	KeyShouldWipeSettings Key = "should-wipe-settings"
)

// AllKeys returns every known key in a stable order.
func AllKeys() []Key {
	return []Key{
		KeySettings,
		KeyDeviceState,
		KeyAccessMethods,
		KeyIPOverrides,
		KeyCustomRelayLists,
		KeyRecentConnections,
		KeyLastUsedAccount,
		KeyShouldWipeSettings,
	}
}

// Valid reports whether k is one of the known keys.
func (k Key) Valid() bool {
	for _, known := range AllKeys() {
		if k == known {
			return true
		}
	}
	return false
}

func (k Key) String() string {
	return string(k)
}
