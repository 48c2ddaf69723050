// Package config handles configuration loading for tunnelvault.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Every field has a default, so running without a file is valid.
//
// # Configuration File
//
// Locations searched (in order):
//
//  1. Path from TUNNELVAULT_CONFIG environment variable
//  2. ./tunnelvault.yaml, ./tunnelvault.yml, ./tunnelvault.toml
//  3. The same names under ~/.config/tunnelvault
//
// The format follows the file extension: .toml is TOML, anything else YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	vault:
//	  path: "${TUNNELVAULT_HOME}/vault.db"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	retry:
//	  initial_interval: "50ms"
//	  max_interval: "1s"
//
// # Paths
//
// Empty or relative vault paths resolve against the data directory,
// $XDG_DATA_HOME/tunnelvault or ~/.local/share/tunnelvault.
//
// # Example
//
//	vault:
//	  service: "net.tunnelvault"
//	logging:
//	  level: "debug"
//	  format: "json"
//	repositories:
//	  recent_connections_limit: 25
//	retry:
//	  max_attempts: 8
package config
