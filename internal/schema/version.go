// ABOUTME: Schema version enumeration for persisted tunnel settings
// ABOUTME: Current names the single terminal version of the chain

package schema

import (
	"errors"
	"fmt"
)

// Version is a schema version number as stored in the payload header.
type Version int

const (
	V1 Version = iota + 1
	V2
	V3
	V4
	V5
	V6
	V7
	V8

	// Current is the version every stored record is migrated to.
	Current = V8
)

// ErrUnknownVersion is returned when a version is outside V1..Current.
var ErrUnknownVersion = errors.New("unknown schema version")

// Valid reports whether v is a known version.
func (v Version) Valid() bool {
	return v >= V1 && v <= Current
}

// IsNewerThanCurrent reports whether v was written by a newer build.
func (v Version) IsNewerThanCurrent() bool {
	return v > Current
}

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// Versions lists every known version in ascending order.
func Versions() []Version {
	versions := make([]Version, 0, int(Current))
	for v := V1; v <= Current; v++ {
		versions = append(versions, v)
	}
	return versions
}
