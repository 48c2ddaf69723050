// ABOUTME: Relay constraint shapes stored by successive schema versions
// ABOUTME: Single-location (V1), with port and filter (V2), entry and exit selections (V3+)

package schema

import (
	"fmt"

	"github.com/2389/tunnelvault/internal/relay"
)

// RelayConstraintsV1 pins relay selection to one location.
type RelayConstraintsV1 struct {
	Location relay.Constraint[relay.RelayLocation] `json:"location"`
}

// RelayConstraintsV2 adds a port and a relay filter. Both default to any.
type RelayConstraintsV2 struct {
	Location relay.Constraint[relay.RelayLocation] `json:"location"`
	Port     relay.Constraint[uint16]              `json:"port"`
	Filter   relay.Constraint[relay.Filter]        `json:"filter"`
}

// RelayConstraints separates the exit selection from the entry selection
// used when multihop is on.
type RelayConstraints struct {
	ExitLocations  relay.Constraint[relay.UserSelectedRelays] `json:"exitLocations"`
	EntryLocations relay.Constraint[relay.UserSelectedRelays] `json:"entryLocations"`
	Port           relay.Constraint[uint16]                   `json:"port"`
	Filter         relay.Constraint[relay.Filter]             `json:"filter"`
}

// DefaultRelayConstraints selects any relay in Sweden.
func DefaultRelayConstraints() RelayConstraints {
	return RelayConstraints{
		ExitLocations: relay.Only(relay.UserSelectedRelays{
			Locations: []relay.RelayLocation{relay.Country("se")},
		}),
		EntryLocations: relay.Any[relay.UserSelectedRelays](),
		Port:           relay.Any[uint16](),
		Filter:         relay.Any[relay.Filter](),
	}
}

func (c RelayConstraintsV1) upgrade() RelayConstraintsV2 {
	return RelayConstraintsV2{
		Location: c.Location,
		Port:     relay.Any[uint16](),
		Filter:   relay.Any[relay.Filter](),
	}
}

// upgrade moves the single location to the exit selection. The entry
// selection starts unconstrained.
func (c RelayConstraintsV2) upgrade() RelayConstraints {
	exit := relay.Any[relay.UserSelectedRelays]()
	if loc, ok := c.Location.Value(); ok {
		exit = relay.Only(relay.UserSelectedRelays{Locations: []relay.RelayLocation{loc}})
	}
	return RelayConstraints{
		ExitLocations:  exit,
		EntryLocations: relay.Any[relay.UserSelectedRelays](),
		Port:           c.Port,
		Filter:         c.Filter,
	}
}

func validateLocation(c relay.Constraint[relay.RelayLocation]) error {
	if loc, ok := c.Value(); ok {
		return loc.Validate()
	}
	return nil
}

func validateFilter(c relay.Constraint[relay.Filter]) error {
	if f, ok := c.Value(); ok {
		return f.Validate()
	}
	return nil
}

func validateSelection(name string, c relay.Constraint[relay.UserSelectedRelays]) error {
	sel, ok := c.Value()
	if !ok {
		return nil
	}
	for _, loc := range sel.Locations {
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c RelayConstraintsV1) Validate() error {
	return validateLocation(c.Location)
}

func (c RelayConstraintsV2) Validate() error {
	if err := validateLocation(c.Location); err != nil {
		return err
	}
	return validateFilter(c.Filter)
}

func (c RelayConstraints) Validate() error {
	if err := validateSelection("exit locations", c.ExitLocations); err != nil {
		return err
	}
	if err := validateSelection("entry locations", c.EntryLocations); err != nil {
		return err
	}
	return validateFilter(c.Filter)
}
