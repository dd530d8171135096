package filerepo

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxorio/filerepo/pkg/concurrency"
	"github.com/fluxorio/filerepo/pkg/fileio"
	"github.com/fluxorio/filerepo/pkg/future"
	"github.com/fluxorio/filerepo/pkg/logging"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

const (
	testRecordSize = 100
	testCapacity   = 1000
)

// stringRecord holds a NUL-terminated string.
type stringRecord struct {
	id    int
	value string
}

func (s stringRecord) RecordID() int { return s.id }

type stringCodec struct{}

func (stringCodec) Decode(id int, window []byte) (stringRecord, error) {
	if i := bytes.IndexByte(window, 0); i >= 0 {
		window = window[:i]
	}
	return stringRecord{id: id, value: string(window)}, nil
}

func (stringCodec) Encode(dst []byte, m stringRecord) ([]byte, error) {
	dst = append(dst, m.value...)
	return append(dst, 0), nil
}

// intRecord holds a big-endian int64 key.
type intRecord struct {
	id  int
	key int64
}

func (r intRecord) RecordID() int { return r.id }

type intCodec struct{}

var errShortWindow = errors.New("short window")

func (intCodec) Decode(id int, window []byte) (intRecord, error) {
	if len(window) < 8 {
		return intRecord{}, errShortWindow
	}
	return intRecord{id: id, key: int64(binary.BigEndian.Uint64(window))}, nil
}

func (intCodec) Encode(dst []byte, m intRecord) ([]byte, error) {
	return binary.BigEndian.AppendUint64(dst, uint64(m.key)), nil
}

type env struct {
	loop *reactor.Reactor
	io   *fileio.NonBlocking
	dir  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	loop := reactor.NewReactor("filerepo-test", 256)
	loop.SetLogger(logging.Nop())
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("reactor Start: %v", err)
	}
	pool := concurrency.NewWorkerPool(context.Background(), concurrency.WorkerPoolConfig{
		Workers:   4,
		QueueSize: 64,
		Logger:    logging.Nop(),
	})
	if err := pool.Start(); err != nil {
		t.Fatalf("pool Start: %v", err)
	}
	t.Cleanup(func() {
		_ = pool.Stop(context.Background())
		_ = loop.Stop(context.Background())
	})
	return &env{
		loop: loop,
		io:   fileio.NewNonBlocking(pool, fileio.Options{Logger: logging.Nop()}),
		dir:  t.TempDir(),
	}
}

func await[T any](t *testing.T, f *future.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Await(ctx)
}

func mustAwait[T any](t *testing.T, f *future.Future[T]) T {
	t.Helper()
	v, err := await(t, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

// seedStrings writes n records holding "String i" in slots of recordSize bytes.
func seedStrings(t *testing.T, path string, n int) {
	t.Helper()
	buf := make([]byte, n*testRecordSize)
	for i := 0; i < n; i++ {
		copy(buf[i*testRecordSize:], fmt.Sprintf("String %d", i))
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (e *env) path(name string) string {
	return filepath.Join(e.dir, name)
}

func openRepo[M Model](t *testing.T, e *env, path string, cfg Config, codec Codec[M], opts ...Option) *Repo[M] {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Nop())}, opts...)
	repo := mustAwait(t, Open(e.io, path, cfg, codec, e.loop, opts...))
	t.Cleanup(func() { _, _ = await(t, repo.Close()) })
	return repo
}

// stringRepo opens a repository seeded with n "String i" records.
func stringRepo(t *testing.T, e *env, n int, opts ...Option) *Repo[stringRecord] {
	t.Helper()
	path := e.path("strings.dat")
	seedStrings(t, path, n)
	return openRepo[stringRecord](t, e, path, Config{RecordSize: testRecordSize}, stringCodec{}, opts...)
}

// sortedIntRepo opens a repository of n records with keys 0, 2, 4, ...
func sortedIntRepo(t *testing.T, e *env, n int) *Repo[intRecord] {
	t.Helper()
	buf := make([]byte, 0, n*8)
	for i := 0; i < n; i++ {
		buf = binary.BigEndian.AppendUint64(buf, uint64(2*i))
	}
	path := e.path("ints.dat")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return openRepo[intRecord](t, e, path, Config{RecordSize: 8}, intCodec{})
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
