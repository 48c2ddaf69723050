// Package migration brings the stored settings record up to the current
// schema version.
//
// Manager reads the settings slot once, decodes it as the version named in
// its payload header, walks the upgrade chain one version at a time, and
// writes the result back in a single store write. A record that is already
// current, or an empty slot, costs one read and no writes.
//
// A stored version newer than schema.Current was written by a newer build
// and is rejected with ErrUnsupportedVersion rather than migrated.
package migration
