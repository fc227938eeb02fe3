package backend

import (
	"context"
	"time"
)

type callResult[T any] struct {
	val T
	err error
}

// withContext runs a provider call that takes no context and returns early
// when ctx ends or timeout passes. An abandoned call finishes in the
// background and its result is dropped.
func withContext[T any](ctx context.Context, timeout time.Duration, call func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan callResult[T], 1)
	go func() {
		val, err := call()
		done <- callResult[T]{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.val, r.err
	}
}
