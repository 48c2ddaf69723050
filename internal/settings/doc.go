// Package settings is the caller-facing layer over the secure store for the
// tunnel settings record and the account slots.
//
// Manager only ever reads and writes schema.LatestSettings. Older records are
// brought forward by MigrateStore, which runs at process start before any
// other reader touches the store and applies the recovery policy:
//
//   - a pending wipe request resets every slot and is then cleared
//   - a failed migration resets the settings slot only, so the device state
//     and last used account survive
//   - a transient access failure resets nothing
package settings
