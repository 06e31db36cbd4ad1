package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	basalterrors "basalt.dev/basalt/internal/errors"
)

// maxRetries bounds how many times a transient provider failure is retried.
// One retry keeps the pipeline responsive; sustained outages surface fast.
const maxRetries = 1

// WithRetry runs op, retrying once with backoff when the failure is in the
// Transient category. Rejected errors return immediately: the provider has
// already told us the request itself is wrong.
func WithRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxInterval(2*time.Second),
		), maxRetries),
		ctx,
	)

	return backoff.RetryWithData(func() (T, error) {
		result, err := op()
		if err != nil && !errors.Is(err, basalterrors.ErrTransient) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, policy)
}
