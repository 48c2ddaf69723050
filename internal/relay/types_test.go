// ABOUTME: Tests for relay value types
// ABOUTME: Pins the JSON encodings of constraints and locations

package relay

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraint_JSON(t *testing.T) {
	data, err := json.Marshal(Any[string]())
	require.NoError(t, err)
	assert.JSONEq(t, `"any"`, string(data))

	data, err = json.Marshal(Only(uint16(443)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"only":443}`, string(data))

	var port Constraint[uint16]
	require.NoError(t, json.Unmarshal([]byte(`{"only": 53}`), &port))
	got, ok := port.Value()
	assert.True(t, ok)
	assert.Equal(t, uint16(53), got)

	require.NoError(t, json.Unmarshal([]byte(` "any" `), &port))
	assert.True(t, port.IsAny())
}

func TestConstraint_RejectsUnknownShapes(t *testing.T) {
	inputs := []string{
		`"all"`,
		`{}`,
		`{"only": 1, "extra": true}`,
		`{"only": "text"}`,
		`[]`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			var c Constraint[int]
			assert.Error(t, json.Unmarshal([]byte(input), &c))
		})
	}
}

func TestRelayLocation_JSON(t *testing.T) {
	tests := []struct {
		loc  RelayLocation
		json string
	}{
		{Country("se"), `["se"]`},
		{City("se", "got"), `["se","got"]`},
		{Host("se", "got", "se-got-wg-001"), `["se","got","se-got-wg-001"]`},
	}
	for _, tt := range tests {
		t.Run(tt.loc.String(), func(t *testing.T) {
			data, err := json.Marshal(tt.loc)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var decoded RelayLocation
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.loc, decoded)
		})
	}
}

func TestRelayLocation_Invalid(t *testing.T) {
	for _, input := range []string{`[]`, `["a","b","c","d"]`, `[""]`, `"se"`} {
		var loc RelayLocation
		assert.Error(t, json.Unmarshal([]byte(input), &loc), input)
	}

	_, err := json.Marshal(RelayLocation{Hostname: "orphan"})
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestRelayLocation_String(t *testing.T) {
	assert.Equal(t, "se-got-se-got-wg-001", Host("se", "got", "se-got-wg-001").String())
	assert.Equal(t, "de", Country("de").String())
}

func TestUserSelectedRelays_Equal(t *testing.T) {
	listID := uuid.New()
	a := UserSelectedRelays{
		Locations:           []RelayLocation{Country("se"), City("de", "ber")},
		CustomListSelection: &CustomListSelection{ListID: listID, IsList: true},
	}
	b := UserSelectedRelays{
		Locations:           []RelayLocation{Country("se"), City("de", "ber")},
		CustomListSelection: &CustomListSelection{ListID: listID, IsList: true},
	}
	assert.True(t, a.Equal(b))

	b.CustomListSelection = nil
	assert.False(t, a.Equal(b))

	b.CustomListSelection = a.CustomListSelection
	b.Locations = []RelayLocation{City("de", "ber"), Country("se")}
	assert.False(t, a.Equal(b))
}

func TestFilter_Defaults(t *testing.T) {
	f := DefaultFilter()
	assert.True(t, f.Ownership.Valid())
	assert.True(t, f.Providers.IsAny())
	assert.False(t, Ownership("leased").Valid())

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ownership":"any","providers":"any"}`, string(data))
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("se/got/se-got-wg-001")
	require.NoError(t, err)
	assert.Equal(t, Host("se", "got", "se-got-wg-001"), loc)

	loc, err = ParseLocation(" de ")
	require.NoError(t, err)
	assert.Equal(t, Country("de"), loc)

	for _, input := range []string{"", "/ber", "se//host", "a/b/c/d"} {
		_, err := ParseLocation(input)
		assert.ErrorIs(t, err, ErrInvalidLocation, input)
	}
}
