// ABOUTME: Typed access to one unversioned store slot
// ABOUTME: An empty slot loads as the zero value

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/payload"
)

// slot reads and writes a value of type T in one store key.
type slot[T any] struct {
	store keystore.Store
	key   keystore.Key
}

// load returns the stored value and whether the slot held one.
func (s slot[T]) load(ctx context.Context) (T, bool, error) {
	var zero T
	data, err := s.store.Read(ctx, s.key)
	if errors.Is(err, keystore.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("reading %s: %w", s.key, err)
	}
	value, err := payload.ParseUnversionedPayload[T](data)
	if err != nil {
		return zero, false, fmt.Errorf("decoding %s: %w", s.key, err)
	}
	return value, true, nil
}

func (s slot[T]) save(ctx context.Context, value T) error {
	data, err := payload.ProduceUnversionedPayload(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.key, err)
	}
	if err := s.store.Write(ctx, s.key, data); err != nil {
		return fmt.Errorf("writing %s: %w", s.key, err)
	}
	return nil
}

func (s slot[T]) clear(ctx context.Context) error {
	err := s.store.Delete(ctx, s.key)
	if err != nil && !errors.Is(err, keystore.ErrNotFound) {
		return fmt.Errorf("deleting %s: %w", s.key, err)
	}
	return nil
}

// checkName trims name and enforces a non-empty name of at most maxLen characters.
// A maxLen of zero means no limit.
func checkName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrNameTooLong, name, maxLen)
	}
	return name, nil
}
