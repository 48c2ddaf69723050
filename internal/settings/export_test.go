// ABOUTME: Tests for settings export formats
// ABOUTME: Each format must carry the stored field names

package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/2389/tunnelvault/internal/schema"
)

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"json":  FormatJSON,
		"YAML":  FormatYAML,
		"yml":   FormatYAML,
		"plist": FormatPlist,
	} {
		got, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestExport_JSON(t *testing.T) {
	data, err := Export(schema.Default(), FormatJSON)
	require.NoError(t, err)

	var back schema.LatestSettings
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, schema.Default(), back)
}

func TestExport_YAML(t *testing.T) {
	data, err := Export(schema.Default(), FormatYAML)
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, yaml.Unmarshal(data, &tree))
	assert.Equal(t, "automatic", tree["ipVersion"])
	assert.Contains(t, tree, "relayConstraints")
	assert.Contains(t, tree, "wireGuardObfuscation")
}

func TestExport_Plist(t *testing.T) {
	data, err := Export(schema.Default(), FormatPlist)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<plist")

	var tree map[string]any
	_, err = plist.Unmarshal(data, &tree)
	require.NoError(t, err)
	assert.Equal(t, "automatic", tree["ipVersion"])
	assert.NotContains(t, tree["dnsSettings"], "customDNSDomains", "nulls are dropped")
}

func TestDropNulls(t *testing.T) {
	in := map[string]any{
		"a": nil,
		"b": []any{1.0, nil, map[string]any{"c": nil, "d": "x"}},
	}
	out := dropNulls(in).(map[string]any)
	assert.NotContains(t, out, "a")
	assert.Equal(t, []any{1.0, map[string]any{"d": "x"}}, out["b"])
}
