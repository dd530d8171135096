// Package concurrency runs blocking work, file syscalls in particular, on
// a fixed set of goroutines so a reactor loop never blocks.
package concurrency

import (
	"context"
	"errors"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull   = errors.New("worker pool: queue full")
	ErrPoolStopped = errors.New("worker pool: not running")
)

type WorkerPool interface {
	Start() error
	// Stop refuses new tasks, runs the queued ones and waits for the
	// workers until ctx expires.
	Stop(ctx context.Context) error
	// Submit queues task without blocking.
	Submit(task Task) error
	// SubmitWait queues task, blocking while the queue is full.
	SubmitWait(ctx context.Context, task Task) error
	Workers() int
	IsRunning() bool
	Stats() PoolStats
}

// PoolStats is a snapshot of pool activity.
type PoolStats struct {
	Workers        int
	QueuedTasks    int
	QueueCapacity  int
	CompletedTasks int64
	FailedTasks    int64
}
