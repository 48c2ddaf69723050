// ABOUTME: Errors shared by the derived repositories
// ABOUTME: Name validation, duplicates, missing entries and permanent entries

package repository

import "errors"

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrDuplicateName is returned when a name collides case-insensitively with another entry.
	ErrDuplicateName = errors.New("name already in use")

	// ErrNameTooLong is returned when a name exceeds the repository limit.
	ErrNameTooLong = errors.New("name too long")

	// ErrEmptyName is returned when a name is empty after trimming.
	ErrEmptyName = errors.New("name is empty")

	// ErrPermanent is returned when removing or reshaping a built-in entry.
	ErrPermanent = errors.New("entry is permanent")

	// ErrInvalidOverride is returned for overrides without a hostname or address.
	ErrInvalidOverride = errors.New("invalid relay override")
)
