// ABOUTME: Error kinds reported by the secure store
// ABOUTME: Maps vault status codes onto not-found, access-denied and corrupt-entry

package keystore

import (
	"errors"
	"fmt"

	"github.com/2389/tunnelvault/internal/vault"
)

var (
	// ErrNotFound is returned when a slot holds no value.
	ErrNotFound = errors.New("no value stored")

	// ErrAccessDenied is returned when the vault is locked or busy. It is transient.
	ErrAccessDenied = errors.New("store access denied")

	// ErrCorruptEntry is returned when a stored value fails the vault integrity check.
	ErrCorruptEntry = errors.New("corrupt store entry")

	// ErrUnknownKey is returned for keys outside the fixed slot set.
	ErrUnknownKey = errors.New("unknown store key")
)

// Error describes a failed store operation.
type Error struct {
	Op  string
	Key Key
	// Kind is one of the package sentinels, or nil when the failure is unclassified.
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("keystore %s %s: %v: %v", e.Op, e.Key, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("keystore %s %s: %v", e.Op, e.Key, e.Kind)
	default:
		return fmt.Sprintf("keystore %s %s: %v", e.Op, e.Key, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// storeError classifies a vault failure.
func storeError(op string, key Key, err error) error {
	var kind error
	switch {
	case errors.Is(err, vault.ErrItemNotFound):
		return &Error{Op: op, Key: key, Kind: ErrNotFound}
	case errors.Is(err, vault.ErrInteractionNotAllowed):
		kind = ErrAccessDenied
	case errors.Is(err, vault.ErrIntegrity):
		kind = ErrCorruptEntry
	}
	return &Error{Op: op, Key: key, Kind: kind, Err: err}
}
