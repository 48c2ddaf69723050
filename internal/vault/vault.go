// ABOUTME: Vault interface, item model, and status errors for the credential vault
// ABOUTME: Addresses items by service+account the way a platform keychain does

package vault

import (
	"context"
	"errors"
	"fmt"
)

// Status is the result code attached to a vault failure.
type Status int

const (
	StatusItemNotFound Status = iota + 1
	StatusDuplicateItem
	StatusInteractionNotAllowed
	StatusIntegrity
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusItemNotFound:
		return "item not found"
	case StatusDuplicateItem:
		return "duplicate item"
	case StatusInteractionNotAllowed:
		return "interaction not allowed"
	case StatusIntegrity:
		return "integrity check failed"
	default:
		return "unknown status"
	}
}

// Sentinels matched by StatusError.Is.
var (
	ErrItemNotFound          = errors.New("item not found")
	ErrDuplicateItem         = errors.New("duplicate item")
	ErrInteractionNotAllowed = errors.New("interaction not allowed")
	ErrIntegrity             = errors.New("integrity check failed")
)

// StatusError is returned by every Vault method on failure.
type StatusError struct {
	Op     string
	Status Status
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vault %s: %s: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("vault %s: %s", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrItemNotFound:
		return e.Status == StatusItemNotFound
	case ErrDuplicateItem:
		return e.Status == StatusDuplicateItem
	case ErrInteractionNotAllowed:
		return e.Status == StatusInteractionNotAllowed
	case ErrIntegrity:
		return e.Status == StatusIntegrity
	}
	return false
}

func statusError(op string, status Status, err error) error {
	return &StatusError{Op: op, Status: status, Err: err}
}

// Accessibility controls when an item can be read.
type Accessibility string

const (
	AccessibleAfterFirstUnlock Accessibility = "after_first_unlock"
	AccessibleAlways           Accessibility = "always"
)

// Attributes are the non-secret properties of an item.
type Attributes struct {
	Accessibility     Accessibility
	ExcludeFromBackup bool
}

// Query addresses a single item.
type Query struct {
	Service string
	Account string
}

func (q Query) String() string {
	return q.Service + "/" + q.Account
}

// Item is a stored secret with its address and attributes.
type Item struct {
	Query
	Data       []byte
	Attributes Attributes
}

// Vault is the raw credential vault API. Implementations are safe for
// concurrent use within a process but do not coordinate across processes.
type Vault interface {
	// Add stores a new item. Fails with StatusDuplicateItem if the address is taken.
	Add(ctx context.Context, item Item) error

	// Update replaces the data of an existing item, keeping its attributes.
	Update(ctx context.Context, q Query, data []byte) error

	// Delete removes an item.
	Delete(ctx context.Context, q Query) error

	// Copy returns the item at q.
	Copy(ctx context.Context, q Query) (Item, error)

	// BackupItems lists items of service that are not excluded from backup.
	BackupItems(ctx context.Context, service string) ([]Item, error)

	// Close releases resources held by the vault.
	Close() error
}
