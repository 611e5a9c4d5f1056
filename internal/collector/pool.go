package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"MarketLens/internal/model"
)

// outcome is the tagged result of one pooled call.
type outcome[T any] struct {
	index int
	value T
	err   error
}

// runPool runs calls on at most workers goroutines, each under its own
// timeout, and returns the outcomes in call order.
func runPool[T any](ctx context.Context, workers int, timeout time.Duration, calls []func(context.Context) (T, error)) []outcome[T] {
	out := make([]outcome[T], len(calls))
	if len(calls) == 0 {
		return out
	}
	if workers < 1 {
		workers = 1
	}
	p := pool.NewWithResults[outcome[T]]().WithMaxGoroutines(workers)
	for i, call := range calls {
		p.Go(func() outcome[T] {
			v, err := callWithTimeout(ctx, timeout, call)
			return outcome[T]{index: i, value: v, err: err}
		})
	}
	for _, o := range p.Wait() {
		out[o.index] = o
	}
	return out
}

// callWithTimeout returns when fn does or when the deadline passes, whichever
// is first. A call that ignores its context is abandoned, not awaited.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: model.NewFetchError("", model.MalformedResponse, fmt.Errorf("panic: %v", r))}
			}
		}()
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, model.NewFetchError("", model.Timeout, ctx.Err())
	}
}
