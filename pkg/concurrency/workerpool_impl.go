package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fluxorio/filerepo/pkg/logging"
)

var errNilTask = errors.New("worker pool: nil task")

type poolState int

const (
	poolIdle poolState = iota
	poolRunning
	poolStopped
)

// WorkerPoolConfig configures a WorkerPool.
type WorkerPoolConfig struct {
	Workers   int
	QueueSize int
	// Logger receives task failures at debug level. nil uses the default logger.
	Logger logging.Logger
}

// DefaultWorkerPoolConfig sizes the pool for file I/O: a few workers are
// enough to keep one disk busy.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{Workers: 4, QueueSize: 1024}
}

type pool struct {
	cfg    WorkerPoolConfig
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards state. Submitters hold it shared while sending so Stop
	// cannot close the queue under them.
	mu    sync.RWMutex
	state poolState

	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates an idle pool. ctx is handed to every task and is
// canceled once the pool has stopped.
func NewWorkerPool(ctx context.Context, cfg WorkerPoolConfig) WorkerPool {
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDefaultLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &pool{
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (p *pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case poolRunning:
		return fmt.Errorf("worker pool: already running")
	case poolStopped:
		return ErrPoolStopped
	}
	p.state = poolRunning
	p.wg.Add(p.cfg.Workers)
	for i := range p.cfg.Workers {
		go p.work(i)
	}
	return nil
}

// work drains the queue until it is closed, so tasks accepted before Stop
// still run and complete their promises.
func (p *pool) work(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		if err := task.Execute(p.ctx); err != nil {
			p.failed.Add(1)
			p.cfg.Logger.Debugf("worker %d: task %s failed: %v", id, task.Name(), err)
			continue
		}
		p.completed.Add(1)
	}
}

func (p *pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != poolRunning {
		p.state = poolStopped
		p.mu.Unlock()
		return nil
	}
	p.state = poolStopped
	close(p.queue)
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()
	defer p.cancel()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop timeout: %w", ctx.Err())
	}
}

func (p *pool) Submit(task Task) error {
	return p.enqueue(context.Background(), task, false)
}

// SubmitWait blocks while the queue is full. Workers keep draining while
// the shared lock is held, so the send makes progress.
func (p *pool) SubmitWait(ctx context.Context, task Task) error {
	return p.enqueue(ctx, task, true)
}

// enqueue sends task. A full queue fails with ErrQueueFull unless wait is
// set, in which case it blocks until ctx is done.
func (p *pool) enqueue(ctx context.Context, task Task, wait bool) error {
	if task == nil {
		return errNilTask
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != poolRunning {
		return ErrPoolStopped
	}

	if !wait {
		select {
		case p.queue <- task:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pool) Workers() int { return p.cfg.Workers }

func (p *pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == poolRunning
}

func (p *pool) Stats() PoolStats {
	return PoolStats{
		Workers:        p.cfg.Workers,
		QueuedTasks:    len(p.queue),
		QueueCapacity:  p.cfg.QueueSize,
		CompletedTasks: p.completed.Load(),
		FailedTasks:    p.failed.Load(),
	}
}
