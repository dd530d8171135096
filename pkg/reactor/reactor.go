// Package reactor implements the single-goroutine event loop that owns all
// record-level logic of a repository. Blocking work runs elsewhere; its
// completions are posted back here so decoding and invariant checks for a
// given loop never run concurrently with each other.
package reactor

import (
	"context"
	"errors"
	"sync"

	"github.com/fluxorio/filerepo/pkg/failfast"
	"github.com/fluxorio/filerepo/pkg/logging"
)

var (
	// ErrBackpressure is returned by Execute when size tasks are already queued.
	ErrBackpressure = errors.New("reactor: mailbox full")
	ErrStopped      = errors.New("reactor: not running")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("reactor: started twice")
)

type Reactor struct {
	name   string
	size   int
	logger logging.Logger

	mu      sync.Mutex
	queue   []func()
	started bool
	stopped bool

	// stopClosed records that the stop channel has been closed.
	stopClosed bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewReactor creates a stopped reactor. size bounds the number of tasks
// Execute accepts before reporting ErrBackpressure; size <= 0 means 1024.
func NewReactor(name string, size int) *Reactor {
	if size <= 0 {
		size = 1024
	}
	return &Reactor{
		name:   name,
		size:   size,
		logger: logging.NewDefaultLogger(),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetLogger replaces the logger used for recovered task panics.
func (r *Reactor) SetLogger(l logging.Logger) {
	if l != nil {
		r.logger = l
	}
}

func (r *Reactor) Name() string {
	return r.name
}

// Start launches the loop goroutine. The loop exits when ctx is done or Stop is called.
func (r *Reactor) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	go r.loop(ctx)
	return nil
}

// Stop refuses new work, runs what is already queued and waits for the loop
// to exit or ctx to expire. It also waits when the loop is already winding
// down because its start context ended.
func (r *Reactor) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	started := r.started
	if !r.stopClosed {
		r.stopClosed = true
		close(r.stop)
	}
	r.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reactor) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.markStopped()
			r.drain()
			return
		case <-r.stop:
			r.drain()
			return
		case <-r.wake:
			r.drain()
		}
	}
}

func (r *Reactor) markStopped() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// drain runs queued tasks until the queue is empty, including tasks queued
// by the tasks themselves.
func (r *Reactor) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.queue = nil
			r.mu.Unlock()
			return
		}
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()

		for _, fn := range batch {
			r.safeExecute(fn)
		}
	}
}

func (r *Reactor) safeExecute(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			if failfast.IsFatal(rec) {
				panic(rec)
			}
			r.logger.Errorf("reactor %s: recovered task panic: %v", r.name, rec)
		}
	}()
	fn()
}
