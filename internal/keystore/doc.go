// Package keystore provides the keyed secure store used for every persisted slot.
//
// # Overview
//
// A Store maps a fixed set of keys to opaque byte values. SecureStore layers
// the Store contract over a vault.Vault and serializes every call through a
// Coordinator, so that the app process and a network extension process
// sharing the same vault never interleave a read with a half-applied write.
//
// # Coordination
//
// FileCoordinator combines an in-process mutex with a cross-process file lock
// on a sentinel path. Each operation takes the coordinator once, performs a
// single vault primitive (or the fixed sequence used for backup exclusion),
// and releases it on every exit path.
//
// # Errors
//
// Failures are reported as *Error values matching one of ErrNotFound,
// ErrAccessDenied or ErrCorruptEntry through errors.Is. ErrNotFound is an
// expected condition; ErrAccessDenied is transient and RetryingStore retries it.
package keystore
