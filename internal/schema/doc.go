// Package schema defines every persisted shape of the tunnel settings record
// and the chain of upgrades between them.
//
// # Versions
//
// Each schema version has its own frozen Go type, TunnelSettingsV1 through
// TunnelSettingsV8. A frozen type is never edited once released: changing
// the persisted shape means adding a new version, an UpgradeToNextVersion
// method on the previous terminal type, and a case in Next.
//
// Current is always the single terminal version, and LatestSettings aliases
// its type so callers outside this package never name a version directly.
//
// # Upgrades
//
// UpgradeToNextVersion is pure and total: it cannot fail, preserves every
// field that has an equivalent in the next version, and fills new fields with
// the defaults documented on their types.
//
// # Obfuscation port
//
// Obfuscation settings were once stored with a single "port" field. Decoding
// tries the current udpOverTcpPort shape first and falls back to that legacy
// shape. Encoding always writes the current shape.
package schema
