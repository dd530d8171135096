package concurrency

import "context"

// Task is blocking work run on a pool worker. Name labels it in logs.
type Task interface {
	Execute(ctx context.Context) error
	Name() string
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error { return f(ctx) }

func (TaskFunc) Name() string { return "anonymous" }

// Named labels fn, usually with the syscall it wraps.
func Named(name string, fn TaskFunc) Task {
	return namedTask{name: name, fn: fn}
}

type namedTask struct {
	name string
	fn   TaskFunc
}

func (t namedTask) Execute(ctx context.Context) error { return t.fn(ctx) }

func (t namedTask) Name() string { return t.name }
