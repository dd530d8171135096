// Package failfast turns violated preconditions into panics and routes
// unrecoverable I/O faults to a process-wide fatal handler.
package failfast

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync/atomic"
)

// FatalError is the panic value raised for unrecoverable conditions.
// The reactor re-raises it instead of recovering, so it takes the process down.
type FatalError struct {
	Err   error
	Stack []byte
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fail-fast: fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether a recovered panic value came from Fatal.
func IsFatal(r interface{}) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var fe *FatalError
	return errors.As(err, &fe)
}

// Handler receives unrecoverable errors.
type Handler func(err error)

var handler atomic.Pointer[Handler]

func defaultHandler(err error) {
	panic(&FatalError{Err: err, Stack: debug.Stack()})
}

// SetHandler replaces the fatal handler and returns a func restoring the
// previous one. Tests use it to observe Fatal without crashing.
func SetHandler(h Handler) (restore func()) {
	prev := handler.Swap(&h)
	return func() { handler.Store(prev) }
}

// Fatal reports an unrecoverable condition. With the default handler it
// panics with a *FatalError. If a custom handler returns, Fatal returns too.
func Fatal(err error) {
	if err == nil {
		return
	}
	if h := handler.Load(); h != nil && *h != nil {
		(*h)(err)
		return
	}
	defaultHandler(err)
}

// Violation is the panic value of a failed precondition. It is an
// ordinary panic, so the reactor recovers and logs it.
type Violation struct {
	Message string
	Stack   []byte
}

func (v *Violation) Error() string { return "fail-fast: " + v.Message }

func violate(format string, args ...interface{}) {
	panic(&Violation{Message: fmt.Sprintf(format, args...), Stack: debug.Stack()})
}

// Err panics if err is not nil.
func Err(err error) {
	if err != nil {
		violate("%v", err)
	}
}

// If asserts condition, panicking with the formatted message when it is false.
func If(condition bool, format string, args ...interface{}) {
	if !condition {
		violate(format, args...)
	}
}

// NotNil panics if ptr is nil, including typed nil pointers and nil funcs.
func NotNil(ptr interface{}, name string) {
	if ptr == nil {
		violate("%s is nil", name)
	}
	switch v := reflect.ValueOf(ptr); v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Interface, reflect.Map, reflect.Chan, reflect.Slice:
		if v.IsNil() {
			violate("%s is nil", name)
		}
	}
}
