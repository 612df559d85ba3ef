package utils

import (
	"context"
	"time"
)

// WithTimeoutResult runs a result-returning function under a derived
// deadline.
func WithTimeoutResult[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(tctx)
}
