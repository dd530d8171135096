// Package future provides single-completion asynchronous results bound to a
// reactor. Callbacks always run on the owning reactor's loop, in the order
// they were registered, never on the goroutine that completed the promise.
package future

import (
	"context"
	"sync"

	"github.com/fluxorio/filerepo/pkg/reactor"
)

// Void is the value type of futures that carry no result.
type Void = struct{}

// Result is a completed value/error pair.
type Result[T any] struct {
	Value T
	Err   error
}

// Future is the read side of an asynchronous computation.
type Future[T any] struct {
	loop *reactor.Reactor

	mu        sync.Mutex
	completed bool
	result    Result[T]
	callbacks []func(T, error)
	done      chan struct{}
}

// Promise is the write side. It embeds the Future it completes.
type Promise[T any] struct {
	*Future[T]
}

// NewPromise creates a promise whose callbacks are delivered on loop.
// A nil loop delivers callbacks inline on the completing goroutine.
func NewPromise[T any](loop *reactor.Reactor) *Promise[T] {
	return &Promise[T]{Future: &Future[T]{
		loop: loop,
		done: make(chan struct{}),
	}}
}

// Succeeded returns a future already completed with v.
func Succeeded[T any](loop *reactor.Reactor, v T) *Future[T] {
	p := NewPromise[T](loop)
	p.Succeed(v)
	return p.Future
}

// Failed returns a future already failed with err.
func Failed[T any](loop *reactor.Reactor, err error) *Future[T] {
	p := NewPromise[T](loop)
	p.Fail(err)
	return p.Future
}

// Loop returns the reactor callbacks are delivered on.
func (f *Future[T]) Loop() *reactor.Reactor {
	return f.loop
}

// Succeed completes the promise with a value.
func (p *Promise[T]) Succeed(v T) {
	p.TryComplete(v, nil)
}

// Fail completes the promise with an error.
func (p *Promise[T]) Fail(err error) {
	var zero T
	p.TryComplete(zero, err)
}

// Complete completes the promise with either a value or an error.
func (p *Promise[T]) Complete(v T, err error) {
	p.TryComplete(v, err)
}

// TryComplete completes the promise and reports whether this call did so.
// Only the first completion takes effect.
func (p *Promise[T]) TryComplete(v T, err error) bool {
	f := p.Future
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	if err != nil {
		f.result = Result[T]{Err: err}
	} else {
		f.result = Result[T]{Value: v}
	}
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	if len(callbacks) > 0 {
		f.dispatch(callbacks)
	}
	return true
}

// dispatch delivers callbacks on the loop. A stopped loop (or none) runs
// them inline so no waiter is left hanging.
func (f *Future[T]) dispatch(callbacks []func(T, error)) {
	res := f.result
	run := func() {
		for _, cb := range callbacks {
			cb(res.Value, res.Err)
		}
	}
	if f.loop == nil {
		run()
		return
	}
	if err := f.loop.Post(run); err != nil {
		run()
	}
}

// OnComplete registers a callback that runs once the future completes.
func (f *Future[T]) OnComplete(cb func(T, error)) *Future[T] {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return f
	}
	f.mu.Unlock()
	f.dispatch([]func(T, error){cb})
	return f
}

// OnSuccess registers a callback for the success case only.
func (f *Future[T]) OnSuccess(cb func(T)) *Future[T] {
	return f.OnComplete(func(v T, err error) {
		if err == nil {
			cb(v)
		}
	})
}

// OnFailure registers a callback for the failure case only.
func (f *Future[T]) OnFailure(cb func(error)) *Future[T] {
	return f.OnComplete(func(_ T, err error) {
		if err != nil {
			cb(err)
		}
	})
}

// Cascade completes p with the outcome of f.
func (f *Future[T]) Cascade(p *Promise[T]) {
	f.OnComplete(p.Complete)
}

// CascadeFailure fails p if f fails; success is left to the caller.
func CascadeFailure[T, R any](f *Future[T], p *Promise[R]) {
	f.OnFailure(p.Fail)
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Poll returns the result if the future has completed.
func (f *Future[T]) Poll() (Result[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.completed
}

// Await blocks until the future completes or ctx is done.
// It must not be called from the future's own loop goroutine.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		res := f.result
		f.mu.Unlock()
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait is Await with a background context.
func (f *Future[T]) Wait() (T, error) {
	return f.Await(context.Background())
}
