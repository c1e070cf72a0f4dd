// Package dispatch runs blocking model calls on frame's worker pool so
// request handlers stay responsive.
package dispatch

import (
	"context"
	"fmt"

	"github.com/pitabwire/frame/workerpool"
)

// Dispatcher submits work to a pool. A nil Dispatcher, or one without a
// pool, runs work on a fresh goroutine.
type Dispatcher struct {
	pool workerpool.WorkerPool
}

// New returns a dispatcher over pool.
func New(pool workerpool.WorkerPool) *Dispatcher {
	return &Dispatcher{pool: pool}
}

type result[T any] struct {
	val T
	err error
}

// Do runs fn off the calling goroutine and waits for it. fn receives a
// context that is never canceled, so once started it runs to completion; the
// caller stops waiting when ctx ends and gets ctx.Err().
func Do[T any](ctx context.Context, d *Dispatcher, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	runCtx := context.WithoutCancel(ctx)
	done := make(chan result[T], 1)
	task := func() {
		var r result[T]
		defer func() {
			if p := recover(); p != nil {
				r = result[T]{err: fmt.Errorf("dispatch: task panicked: %v", p)}
			}
			done <- r
		}()
		r.val, r.err = fn(runCtx)
	}

	if d == nil || d.pool == nil {
		go task()
	} else if err := d.pool.Submit(runCtx, task); err != nil {
		return zero, fmt.Errorf("dispatch: submit: %w", err)
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
