// Package vault provides the protected credential vault the keystore is built on.
//
// # Model
//
// The vault stores items addressed by a (service, account) pair, the same
// addressing a platform keychain uses. Each item carries opaque data and a
// small set of attributes:
//
//   - Accessibility: when the item may be read (after first unlock, always)
//   - ExcludeFromBackup: whether the item is left out of backups and exports
//
// Primitives mirror a keychain API: Add, Update, Delete, Copy. None of them
// coordinate with other processes; that is the keystore's job.
//
// # Implementations
//
//   - SQLiteVault: modernc.org/sqlite database in WAL mode. Item data is
//     sealed with XChaCha20-Poly1305; the service and account are bound as
//     additional data, so an item copied to another address fails to open.
//   - MemoryVault: in-memory implementation for tests, with failure injection.
//
// # Errors
//
// Every failure is reported as a *StatusError carrying a Status code:
//
//   - StatusItemNotFound: no item at that address
//   - StatusDuplicateItem: Add on an existing address
//   - StatusInteractionNotAllowed: the database is busy or locked; retry later
//   - StatusIntegrity: an item exists but cannot be opened
//
// Use errors.Is with ErrItemNotFound, ErrDuplicateItem,
// ErrInteractionNotAllowed and ErrIntegrity.
//
// # Backups
//
// BackupItems lists every item not excluded from backup. The keystore uses
// it to report which slots a device backup would still copy.
package vault
