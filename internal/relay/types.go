// ABOUTME: Relay selection value types: locations, constraints, filters
// ABOUTME: Persisted inside settings records and repositories, so encodings are frozen

package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidLocation is returned when a location has no components or more than three.
var ErrInvalidLocation = errors.New("invalid relay location")

// Constraint is either unconstrained ("any") or pinned to a single value.
type Constraint[T any] struct {
	// Only is nil for "any".
	Only *T
}

// Any returns an unconstrained value.
func Any[T any]() Constraint[T] {
	return Constraint[T]{}
}

// Only returns a constraint pinned to v.
func Only[T any](v T) Constraint[T] {
	return Constraint[T]{Only: &v}
}

// IsAny reports whether the constraint accepts every value.
func (c Constraint[T]) IsAny() bool {
	return c.Only == nil
}

// Value returns the pinned value and whether there is one.
func (c Constraint[T]) Value() (T, bool) {
	if c.Only == nil {
		var zero T
		return zero, false
	}
	return *c.Only, true
}

func (c Constraint[T]) MarshalJSON() ([]byte, error) {
	if c.Only == nil {
		return []byte(`"any"`), nil
	}
	return json.Marshal(struct {
		Only T `json:"only"`
	}{Only: *c.Only})
}

func (c *Constraint[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte(`"any"`)) {
		c.Only = nil
		return nil
	}

	var wrapper struct {
		Only *json.RawMessage `json:"only"`
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wrapper); err != nil {
		return fmt.Errorf("decoding constraint: %w", err)
	}
	if wrapper.Only == nil {
		return errors.New("decoding constraint: expected \"any\" or {\"only\": ...}")
	}

	var v T
	inner := json.NewDecoder(bytes.NewReader(*wrapper.Only))
	inner.DisallowUnknownFields()
	if err := inner.Decode(&v); err != nil {
		return fmt.Errorf("decoding constraint value: %w", err)
	}
	c.Only = &v
	return nil
}

// RelayLocation is a country, city, or hostname selection.
type RelayLocation struct {
	Country  string
	City     string
	Hostname string
}

// Country returns a country-wide location.
func Country(code string) RelayLocation {
	return RelayLocation{Country: code}
}

// City returns a city location.
func City(country, city string) RelayLocation {
	return RelayLocation{Country: country, City: city}
}

// Host returns a single-relay location.
func Host(country, city, hostname string) RelayLocation {
	return RelayLocation{Country: country, City: city, Hostname: hostname}
}

// Components returns the location as its path components.
func (l RelayLocation) Components() []string {
	switch {
	case l.Hostname != "":
		return []string{l.Country, l.City, l.Hostname}
	case l.City != "":
		return []string{l.Country, l.City}
	default:
		return []string{l.Country}
	}
}

func (l RelayLocation) String() string {
	return strings.Join(l.Components(), "-")
}

// Validate checks the location has a country and no gaps in its components.
func (l RelayLocation) Validate() error {
	if l.Country == "" {
		return fmt.Errorf("%w: missing country", ErrInvalidLocation)
	}
	if l.Hostname != "" && l.City == "" {
		return fmt.Errorf("%w: hostname %q without city", ErrInvalidLocation, l.Hostname)
	}
	return nil
}

func (l RelayLocation) MarshalJSON() ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(l.Components())
}

func (l *RelayLocation) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decoding relay location: %w", err)
	}
	switch len(parts) {
	case 1:
		*l = Country(parts[0])
	case 2:
		*l = City(parts[0], parts[1])
	case 3:
		*l = Host(parts[0], parts[1], parts[2])
	default:
		return fmt.Errorf("%w: %d components", ErrInvalidLocation, len(parts))
	}
	return l.Validate()
}

// CustomListSelection records that a selection came from a custom list.
type CustomListSelection struct {
	ListID uuid.UUID `json:"listId"`
	// IsList is true when the whole list was selected rather than a location inside it.
	IsList bool `json:"isList"`
}

// UserSelectedRelays is the set of locations picked by the user.
type UserSelectedRelays struct {
	Locations           []RelayLocation      `json:"locations"`
	CustomListSelection *CustomListSelection `json:"customListSelection,omitempty"`
}

// Equal reports whether two selections name the same locations in the same order.
func (u UserSelectedRelays) Equal(other UserSelectedRelays) bool {
	if len(u.Locations) != len(other.Locations) {
		return false
	}
	for i := range u.Locations {
		if u.Locations[i] != other.Locations[i] {
			return false
		}
	}
	switch {
	case u.CustomListSelection == nil && other.CustomListSelection == nil:
		return true
	case u.CustomListSelection == nil || other.CustomListSelection == nil:
		return false
	default:
		return *u.CustomListSelection == *other.CustomListSelection
	}
}

// Ownership filters relays by who operates the hardware.
type Ownership string

const (
	OwnershipAny    Ownership = "any"
	OwnershipOwned  Ownership = "owned"
	OwnershipRented Ownership = "rented"
)

// Valid reports whether o is a known ownership value.
func (o Ownership) Valid() bool {
	switch o {
	case OwnershipAny, OwnershipOwned, OwnershipRented:
		return true
	}
	return false
}

// Filter narrows relays by ownership and hosting provider.
type Filter struct {
	Ownership Ownership            `json:"ownership"`
	Providers Constraint[[]string] `json:"providers"`
}

// DefaultFilter accepts every relay.
func DefaultFilter() Filter {
	return Filter{Ownership: OwnershipAny, Providers: Any[[]string]()}
}

// Validate checks the ownership value and that pinned providers are named.
func (f Filter) Validate() error {
	if !f.Ownership.Valid() {
		return fmt.Errorf("unknown ownership %q", f.Ownership)
	}
	if providers, ok := f.Providers.Value(); ok {
		for _, p := range providers {
			if p == "" {
				return errors.New("empty provider name")
			}
		}
	}
	return nil
}

// ParseLocation parses a location written as country, country/city, or
// country/city/hostname.
func ParseLocation(s string) (RelayLocation, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	var loc RelayLocation
	switch len(parts) {
	case 1:
		loc = Country(parts[0])
	case 2:
		loc = City(parts[0], parts[1])
	case 3:
		loc = Host(parts[0], parts[1], parts[2])
	default:
		return RelayLocation{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	if err := loc.Validate(); err != nil {
		return RelayLocation{}, err
	}
	return loc, nil
}
