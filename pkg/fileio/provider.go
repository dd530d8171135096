// Package fileio provides the non-blocking file primitives record
// repositories are built on. Every call returns immediately with a future;
// the syscall runs on a worker pool and its completion is delivered on the
// reactor passed to the call.
package fileio

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/fluxorio/filerepo/pkg/future"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

// ErrInvalidChunkSize is returned by ReadChunked for a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("fileio: chunk size must be positive")

// Mode selects read and/or write access.
type Mode int

const (
	ModeRead Mode = 1 << iota
	ModeWrite

	ModeReadWrite = ModeRead | ModeWrite
)

func (m Mode) osFlag() int {
	switch m {
	case ModeRead:
		return os.O_RDONLY
	case ModeWrite:
		return os.O_WRONLY
	default:
		return os.O_RDWR
	}
}

// Flags control file creation on Open.
type Flags struct {
	Create bool
	Perm   os.FileMode
}

// DefaultFlags opens existing files only.
func DefaultFlags() Flags {
	return Flags{}
}

// AllowCreation creates the file with perm if it does not exist.
func AllowCreation(perm os.FileMode) Flags {
	return Flags{Create: true, Perm: perm}
}

// Handle is an open file. It is closed at most once.
type Handle struct {
	path string
	file *os.File

	mu     sync.Mutex
	closed bool
}

// NewHandle wraps an already open file.
func NewHandle(f *os.File) *Handle {
	return &Handle{path: f.Name(), file: f}
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string {
	return h.path
}

// File returns the underlying file, or os.ErrClosed once closed.
func (h *Handle) File() (*os.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, os.ErrClosed
	}
	return h.file, nil
}

// markClosed flips the handle to closed and reports whether this call did so.
func (h *Handle) markClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	return true
}

// ChunkHandler consumes one chunk of a chunked read. The next chunk is
// read only after the returned future succeeds; a failure aborts the read.
type ChunkHandler func(chunk []byte) *future.Future[future.Void]

// Provider is the file I/O contract consumed by record repositories.
type Provider interface {
	Open(path string, mode Mode, flags Flags, loop *reactor.Reactor) *future.Future[*Handle]
	// Read reads up to byteCount bytes from the start of the file.
	Read(h *Handle, byteCount int, loop *reactor.Reactor) *future.Future[[]byte]
	// ReadAt reads up to byteCount bytes at offset; the result is short or
	// empty when the range crosses or starts at end-of-file.
	ReadAt(h *Handle, offset int64, byteCount int, loop *reactor.Reactor) *future.Future[[]byte]
	// ReadChunked streams byteCount bytes from offset in chunkSize pieces.
	// It completes successfully, possibly early, when end-of-file is reached.
	ReadChunked(h *Handle, offset int64, byteCount, chunkSize int, loop *reactor.Reactor, onChunk ChunkHandler) *future.Future[future.Void]
	Write(h *Handle, offset int64, data []byte, loop *reactor.Reactor) *future.Future[future.Void]
	ChangeSize(h *Handle, size int64, loop *reactor.Reactor) *future.Future[future.Void]
	Sync(h *Handle, loop *reactor.Reactor) *future.Future[future.Void]
	FileSize(h *Handle, loop *reactor.Reactor) *future.Future[int64]
	Close(h *Handle, loop *reactor.Reactor) *future.Future[future.Void]
	// Rename moves from to to, replacing any existing file at to.
	Rename(from, to string, loop *reactor.Reactor) *future.Future[future.Void]
	Remove(path string, loop *reactor.Reactor) *future.Future[future.Void]
}

// Observer receives one event per completed syscall.
type Observer interface {
	ObserveIO(op string, bytes int, latency time.Duration, err error)
}
