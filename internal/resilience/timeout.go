// Package resilience wraps slow external calls (geocoding batches,
// residential validation) with deadlines and retries.
package resilience

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. If fn does not complete in time, an error wrapping
// context.DeadlineExceeded is returned and fn keeps running in the
// background until it observes its cancelled context.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "%s: parent context cancelled", name)
		}
		return errors.Wrapf(context.DeadlineExceeded, "%s (limit: %v)", name, timeout)
	}
}
