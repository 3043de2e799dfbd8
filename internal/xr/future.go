package xr

import (
	"context"
	"sync"
)

// Result is the outcome of an asynchronous provider operation. Failure is a
// value (OK false), never a raised error, so unsupported or rejected
// operations look the same to the caller as provider-side failures.
type Result[T any] struct {
	Value T
	OK    bool
}

// Future is a single-assignment completion cell. A provider that only
// implements a synchronous operation is bridged by wrapping the synchronous
// result in an already-resolved Future; natively asynchronous providers hand
// out a pending Future and resolve it from their own completion path.
type Future[T any] struct {
	done   chan struct{}
	result Result[T]
}

// Resolved returns a Future that already carries r.
func Resolved[T any](r Result[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), result: r}
	close(f.done)
	return f
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// TryResult returns the outcome without blocking. The second return is
// false while the future is still pending.
func (f *Future[T]) TryResult() (Result[T], bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result[T]{}, false
	}
}

// Wait suspends until the future resolves or ctx is cancelled. It must not
// be called from the poll goroutine while a poll is in flight; the poll
// loop never blocks on provider completions.
func (f *Future[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// Promise is the producer side of a Future. Exactly one outcome is ever
// delivered: racing Resolve calls beyond the first lose and report false.
type Promise[T any] struct {
	f    *Future[T]
	once sync.Once
}

// NewPromise returns a pending promise/future pair.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: &Future[T]{done: make(chan struct{})}}
}

// Future returns the consumer handle.
func (p *Promise[T]) Future() *Future[T] {
	return p.f
}

// Resolve delivers the outcome. Returns false if the promise had already
// been resolved.
func (p *Promise[T]) Resolve(r Result[T]) bool {
	won := false
	p.once.Do(func() {
		p.f.result = r
		close(p.f.done)
		won = true
	})
	return won
}
