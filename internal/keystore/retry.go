// ABOUTME: Store decorator retrying transient access-denied failures
// ABOUTME: Uses cenkalti/backoff exponential backoff bounded by attempts and context

package keystore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how ErrAccessDenied failures are retried.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean a single attempt.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// RetryingStore retries operations of the wrapped Store that fail with
// ErrAccessDenied. Every other error is returned immediately.
type RetryingStore struct {
	store  Store
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetryingStore wraps s with policy.
func NewRetryingStore(s Store, policy RetryPolicy) *RetryingStore {
	return &RetryingStore{
		store:  s,
		policy: policy,
		logger: slog.Default().With("component", "keystore"),
	}
}

func (r *RetryingStore) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		b.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		b.MaxInterval = r.policy.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := 0
	if r.policy.MaxAttempts > 1 {
		retries = r.policy.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (r *RetryingStore) do(ctx context.Context, op string, key Key, fn func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrAccessDenied) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("store access denied, retrying", "op", op, "key", key, "attempt", attempt)
		return err
	}, r.backOff(ctx))
}

func (r *RetryingStore) Read(ctx context.Context, key Key) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "read", key, func() error {
		var err error
		data, err = r.store.Read(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RetryingStore) Write(ctx context.Context, key Key, data []byte) error {
	return r.do(ctx, "write", key, func() error {
		return r.store.Write(ctx, key, data)
	})
}

func (r *RetryingStore) Delete(ctx context.Context, key Key) error {
	return r.do(ctx, "delete", key, func() error {
		return r.store.Delete(ctx, key)
	})
}

func (r *RetryingStore) ExcludeFromBackup(ctx context.Context, key Key) error {
	return r.do(ctx, "exclude from backup", key, func() error {
		return r.store.ExcludeFromBackup(ctx, key)
	})
}

var _ Store = (*RetryingStore)(nil)
