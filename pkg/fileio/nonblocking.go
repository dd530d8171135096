package fileio

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/fluxorio/filerepo/pkg/concurrency"
	"github.com/fluxorio/filerepo/pkg/future"
	"github.com/fluxorio/filerepo/pkg/logging"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

// Options tune a NonBlocking provider.
type Options struct {
	// SyncRetries bounds the flush attempts per Sync.
	SyncRetries int
	// SyncRetryPause is the pause between failed flush attempts.
	SyncRetryPause time.Duration
	// Observer, if set, is told about every completed syscall.
	Observer Observer
	Logger   logging.Logger
}

// DefaultOptions returns the defaults used for a zero Options.
func DefaultOptions() Options {
	return Options{
		SyncRetries:    100,
		SyncRetryPause: time.Microsecond,
	}
}

// NonBlocking implements Provider on top of a WorkerPool. Calls never block
// the calling goroutine: a call made while the pool queue is full waits for
// a slot on its own goroutine, so back-pressure shows up as latency.
type NonBlocking struct {
	pool concurrency.WorkerPool
	opts Options
	ctx  context.Context
}

// NewNonBlocking creates a provider submitting blocking calls to pool.
// The pool must be started by the caller.
func NewNonBlocking(pool concurrency.WorkerPool, opts Options) *NonBlocking {
	def := DefaultOptions()
	if opts.SyncRetries <= 0 {
		opts.SyncRetries = def.SyncRetries
	}
	if opts.SyncRetryPause <= 0 {
		opts.SyncRetryPause = def.SyncRetryPause
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	return &NonBlocking{pool: pool, opts: opts, ctx: context.Background()}
}

// run executes fn on the pool and completes the returned future with its
// result. n is the byte count reported to the observer.
func run[T any](nb *NonBlocking, loop *reactor.Reactor, op string, fn func() (v T, n int, err error)) *future.Future[T] {
	p := future.NewPromise[T](loop)
	task := concurrency.Named(op, func(context.Context) error {
		start := time.Now()
		v, n, err := fn()
		if nb.opts.Observer != nil {
			nb.opts.Observer.ObserveIO(op, n, time.Since(start), err)
		}
		p.Complete(v, err)
		return err
	})
	nb.submit(task, p.Fail)
	return p.Future
}

// submit queues task without blocking the caller, which is usually a
// reactor goroutine. When the pool queue is full a helper goroutine waits
// for a free slot instead.
func (nb *NonBlocking) submit(task concurrency.Task, fail func(error)) {
	err := nb.pool.Submit(task)
	switch {
	case err == nil:
	case errors.Is(err, concurrency.ErrQueueFull):
		go func() {
			if err := nb.pool.SubmitWait(nb.ctx, task); err != nil {
				fail(err)
			}
		}()
	default:
		fail(err)
	}
}

func (nb *NonBlocking) Open(path string, mode Mode, flags Flags, loop *reactor.Reactor) *future.Future[*Handle] {
	return run(nb, loop, "open", func() (*Handle, int, error) {
		flag := mode.osFlag()
		perm := flags.Perm
		if flags.Create {
			flag |= os.O_CREATE
			if perm == 0 {
				perm = 0o600
			}
		}
		f, err := os.OpenFile(path, flag, perm)
		if err != nil {
			return nil, 0, err
		}
		return &Handle{path: path, file: f}, 0, nil
	})
}

func (nb *NonBlocking) Read(h *Handle, byteCount int, loop *reactor.Reactor) *future.Future[[]byte] {
	return nb.readAt(h, 0, byteCount, loop, "read")
}

func (nb *NonBlocking) ReadAt(h *Handle, offset int64, byteCount int, loop *reactor.Reactor) *future.Future[[]byte] {
	return nb.readAt(h, offset, byteCount, loop, "read_at")
}

func (nb *NonBlocking) readAt(h *Handle, offset int64, byteCount int, loop *reactor.Reactor, op string) *future.Future[[]byte] {
	return run(nb, loop, op, func() ([]byte, int, error) {
		f, err := h.File()
		if err != nil {
			return nil, 0, err
		}
		buf := make([]byte, byteCount)
		n, err := f.ReadAt(buf, offset)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if err != nil {
			return nil, n, err
		}
		return buf[:n], n, nil
	})
}

func (nb *NonBlocking) ReadChunked(h *Handle, offset int64, byteCount, chunkSize int, loop *reactor.Reactor, onChunk ChunkHandler) *future.Future[future.Void] {
	if chunkSize <= 0 {
		return future.Failed[future.Void](loop, ErrInvalidChunkSize)
	}

	var step func(off int64, remaining int) *future.Future[future.Void]
	step = func(off int64, remaining int) *future.Future[future.Void] {
		if remaining <= 0 {
			return future.Succeeded(loop, future.Void{})
		}
		want := min(chunkSize, remaining)
		return future.FlatMap(nb.readAt(h, off, want, loop, "read_chunk"), func(chunk []byte) *future.Future[future.Void] {
			if len(chunk) == 0 {
				return future.Succeeded(loop, future.Void{})
			}
			return future.FlatMap(onChunk(chunk), func(future.Void) *future.Future[future.Void] {
				if len(chunk) < want {
					return future.Succeeded(loop, future.Void{})
				}
				return step(off+int64(len(chunk)), remaining-len(chunk))
			})
		})
	}
	return step(offset, byteCount)
}

func (nb *NonBlocking) Write(h *Handle, offset int64, data []byte, loop *reactor.Reactor) *future.Future[future.Void] {
	return run(nb, loop, "write", func() (future.Void, int, error) {
		f, err := h.File()
		if err != nil {
			return future.Void{}, 0, err
		}
		n, err := f.WriteAt(data, offset)
		return future.Void{}, n, err
	})
}

func (nb *NonBlocking) ChangeSize(h *Handle, size int64, loop *reactor.Reactor) *future.Future[future.Void] {
	return run(nb, loop, "change_size", func() (future.Void, int, error) {
		f, err := h.File()
		if err != nil {
			return future.Void{}, 0, err
		}
		return future.Void{}, 0, f.Truncate(size)
	})
}

func (nb *NonBlocking) Sync(h *Handle, loop *reactor.Reactor) *future.Future[future.Void] {
	return run(nb, loop, "sync", func() (future.Void, int, error) {
		f, err := h.File()
		if err != nil {
			return future.Void{}, 0, err
		}
		return future.Void{}, 0, nb.syncWithRetry(f)
	})
}

// syncWithRetry retries the flush; transient failures are common under load.
func (nb *NonBlocking) syncWithRetry(f *os.File) error {
	var err error
	for attempt := 1; attempt <= nb.opts.SyncRetries; attempt++ {
		if err = fsync(f); err == nil {
			return nil
		}
		if attempt < nb.opts.SyncRetries {
			time.Sleep(nb.opts.SyncRetryPause)
		}
	}
	nb.opts.Logger.Warnf("fileio: sync %s failed after %d attempts: %v", f.Name(), nb.opts.SyncRetries, err)
	return err
}

func (nb *NonBlocking) FileSize(h *Handle, loop *reactor.Reactor) *future.Future[int64] {
	return run(nb, loop, "file_size", func() (int64, int, error) {
		f, err := h.File()
		if err != nil {
			return 0, 0, err
		}
		st, err := f.Stat()
		if err != nil {
			return 0, 0, err
		}
		return st.Size(), 0, nil
	})
}

// Close flushes the file before closing it. The flush result is ignored;
// a failed close is reported.
func (nb *NonBlocking) Close(h *Handle, loop *reactor.Reactor) *future.Future[future.Void] {
	return run(nb, loop, "close", func() (future.Void, int, error) {
		if !h.markClosed() {
			return future.Void{}, 0, os.ErrClosed
		}
		_ = fsync(h.file)
		return future.Void{}, 0, h.file.Close()
	})
}

func (nb *NonBlocking) Rename(from, to string, loop *reactor.Reactor) *future.Future[future.Void] {
	return run(nb, loop, "rename", func() (future.Void, int, error) {
		if err := os.Remove(to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return future.Void{}, 0, err
		}
		return future.Void{}, 0, os.Rename(from, to)
	})
}

func (nb *NonBlocking) Remove(path string, loop *reactor.Reactor) *future.Future[future.Void] {
	return run(nb, loop, "remove", func() (future.Void, int, error) {
		return future.Void{}, 0, os.Remove(path)
	})
}

var _ Provider = (*NonBlocking)(nil)
