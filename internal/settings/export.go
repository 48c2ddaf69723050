// ABOUTME: Settings export to JSON, YAML and property list for diagnostics
// ABOUTME: YAML and plist are rendered from the JSON form so field names match the stored record

package settings

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/2389/tunnelvault/internal/schema"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatPlist Format = "plist"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatYAML, FormatPlist:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json, yaml, or plist)", name)
}

// Export renders s in format.
func Export(s schema.LatestSettings, format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(s, "", "  ")
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decoding settings tree: %w", err)
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(tree)
	case FormatPlist:
		// Property lists have no null.
		return plist.MarshalIndent(dropNulls(tree), plist.XMLFormat, "\t")
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = dropNulls(val)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if val != nil {
				out = append(out, dropNulls(val))
			}
		}
		return out
	}
	return v
}
