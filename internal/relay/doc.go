// Package relay holds the relay-selection value types shared by the settings
// schema and the derived repositories.
//
// # Locations
//
// A RelayLocation narrows relay selection to a country, a city, or a single
// host. It encodes as a JSON string array of one to three components:
//
//	["se"]                         country
//	["se", "got"]                  city
//	["se", "got", "se-got-wg-001"] hostname
//
// # Constraints
//
// Constraint[T] is either "any" or a concrete value:
//
//	"any"
//	{"only": 53}
//
// These encodings are part of the persisted format. Changing them breaks
// every stored settings record that embeds them, so new shapes get new types.
package relay
