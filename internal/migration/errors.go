// ABOUTME: Migration error types
// ABOUTME: Error carries the source and target versions of a failed migration

package migration

import (
	"errors"
	"fmt"

	"github.com/2389/tunnelvault/internal/schema"
)

// ErrUnsupportedVersion is returned when the stored version is newer than schema.Current.
var ErrUnsupportedVersion = errors.New("stored settings version is newer than supported")

// Error reports a migration that could not complete.
type Error struct {
	From schema.Version
	To   schema.Version
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migrating settings from %s to %s: %v", e.From, e.To, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
