package future

import (
	"sync"

	"github.com/fluxorio/filerepo/pkg/reactor"
)

// Pair holds the results of And.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Map transforms a successful result.
func Map[T, R any](f *Future[T], fn func(T) R) *Future[R] {
	p := NewPromise[R](f.loop)
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		p.Succeed(fn(v))
	})
	return p.Future
}

// Then transforms a successful result with a function that may fail.
func Then[T, R any](f *Future[T], fn func(T) (R, error)) *Future[R] {
	p := NewPromise[R](f.loop)
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		p.Complete(fn(v))
	})
	return p.Future
}

// FlatMap chains a dependent asynchronous step onto a successful result.
func FlatMap[T, R any](f *Future[T], fn func(T) *Future[R]) *Future[R] {
	p := NewPromise[R](f.loop)
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		fn(v).Cascade(p)
	})
	return p.Future
}

// Catch replaces a failure with the outcome of fn. Successes pass through.
func Catch[T any](f *Future[T], fn func(error) (T, error)) *Future[T] {
	p := NewPromise[T](f.loop)
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Complete(fn(err))
			return
		}
		p.Succeed(v)
	})
	return p.Future
}

// FlatCatch replaces a failure with another future.
func FlatCatch[T any](f *Future[T], fn func(error) *Future[T]) *Future[T] {
	p := NewPromise[T](f.loop)
	f.OnComplete(func(v T, err error) {
		if err != nil {
			fn(err).Cascade(p)
			return
		}
		p.Succeed(v)
	})
	return p.Future
}

// And succeeds once both futures succeed and fails with the first failure.
func And[A, B any](fa *Future[A], fb *Future[B]) *Future[Pair[A, B]] {
	p := NewPromise[Pair[A, B]](fa.loop)

	var mu sync.Mutex
	var pair Pair[A, B]
	remaining := 2
	finish := func() {
		remaining--
		if remaining == 0 {
			p.Succeed(pair)
		}
	}

	fa.OnComplete(func(v A, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		pair.First = v
		finish()
	})
	fb.OnComplete(func(v B, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		pair.Second = v
		finish()
	})
	return p.Future
}

// WhenAllComplete waits for every future regardless of outcome and returns
// their results in input order. It never fails.
func WhenAllComplete[T any](loop *reactor.Reactor, fs []*Future[T]) *Future[[]Result[T]] {
	p := NewPromise[[]Result[T]](loop)
	results := make([]Result[T], len(fs))
	if len(fs) == 0 {
		p.Succeed(results)
		return p.Future
	}

	var mu sync.Mutex
	remaining := len(fs)
	for i, f := range fs {
		i := i
		f.OnComplete(func(v T, err error) {
			mu.Lock()
			results[i] = Result[T]{Value: v, Err: err}
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				p.Succeed(results)
			}
		})
	}
	return p.Future
}

// AllSucceed succeeds once every future has succeeded and fails with the
// first failure observed.
func AllSucceed[T any](loop *reactor.Reactor, fs []*Future[T]) *Future[Void] {
	p := NewPromise[Void](loop)
	if len(fs) == 0 {
		p.Succeed(Void{})
		return p.Future
	}

	var mu sync.Mutex
	remaining := len(fs)
	for _, f := range fs {
		f.OnComplete(func(_ T, err error) {
			if err != nil {
				p.Fail(err)
				return
			}
			mu.Lock()
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				p.Succeed(Void{})
			}
		})
	}
	return p.Future
}
