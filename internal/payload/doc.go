// Package payload encodes and decodes the envelopes stored in keystore slots.
//
// Two envelope kinds exist and they never decode as each other:
//
//	versioned:   'V' | version (uint32 BE) | length (uint32 BE) | body
//	unversioned: 'U' | length (uint32 BE) | body
//
// Bodies are JSON. ParseVersion reads only the header, so it succeeds for
// versions the running build does not know about; deciding what to do with
// such a version is the caller's job. ParsePayload decodes strictly: unknown
// fields, trailing data, or a failed Validate() all produce a *DecodeError,
// which is distinct from a framing error (ErrMalformed) and from a version
// tag that differs from the one requested (ErrVersionMismatch).
package payload
