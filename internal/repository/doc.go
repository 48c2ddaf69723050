// Package repository holds the small collections persisted next to the
// settings record: API access methods, custom relay lists, relay IP
// overrides, and recent connections.
//
// Each repository owns one store slot holding an unversioned payload. Every
// change is a read-modify-write of the whole collection, serialized within
// the process by the repository mutex and across processes by the store
// coordinator. Subscribers receive the new collection only after the write
// has been stored.
//
// Repositories depend on the keystore, the payload codec, and the relay value
// types. They never touch the settings record.
package repository
