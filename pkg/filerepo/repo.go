// Package filerepo stores homogeneous fixed-width records in a single flat
// file. Logical ids are translated to byte offsets; reads, patch-writes,
// appends and truncation run through a non-blocking fileio.Provider and
// complete on the repository's reactor.
//
// A Repo performs no locking. Overlapping writes issued concurrently can
// race; sequencing them is up to the caller.
package filerepo

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/filerepo/pkg/failfast"
	"github.com/fluxorio/filerepo/pkg/fileio"
	"github.com/fluxorio/filerepo/pkg/future"
	"github.com/fluxorio/filerepo/pkg/logging"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

// Model is a record with an integer identity equal to its logical id.
type Model interface {
	RecordID() int
}

// Codec converts records to and from their on-disk bytes.
type Codec[M any] interface {
	// Decode builds the record with logical id id from window, which holds
	// exactly the field width of bytes.
	Decode(id int, window []byte) (M, error)
	// Encode appends the encoding of m to dst. The result must not be wider
	// than the field; bytes of the field it does not cover keep their value.
	Encode(dst []byte, m M) ([]byte, error)
}

type options struct {
	logger   logging.Logger
	tracer   trace.Tracer
	observer Observer
	name     string
}

// Option configures a Repo.
type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithName labels the repository in logs, spans and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Repo is a fixed-width record repository over one open file.
type Repo[M Model] struct {
	cfg    Config
	codec  Codec[M]
	io     fileio.Provider
	handle *fileio.Handle
	loop   *reactor.Reactor

	id       uuid.UUID
	name     string
	model    string
	logger   logging.Logger
	tracer   trace.Tracer
	observer Observer
}

// New wraps an open handle. The repository owns the handle until Close.
func New[M Model](cfg Config, codec Codec[M], provider fileio.Provider, handle *fileio.Handle, loop *reactor.Reactor, opts ...Option) (*Repo[M], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	failfast.NotNil(codec, "codec")
	failfast.NotNil(provider, "provider")
	failfast.NotNil(handle, "handle")
	failfast.NotNil(loop, "loop")

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewDefaultLogger()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	var zero M
	r := &Repo[M]{
		cfg:      cfg,
		codec:    codec,
		io:       provider,
		handle:   handle,
		loop:     loop,
		id:       uuid.New(),
		name:     o.name,
		model:    fmt.Sprintf("%T", zero),
		logger:   o.logger,
		tracer:   o.tracer,
		observer: o.observer,
	}
	if r.name == "" {
		r.name = "repo-" + r.id.String()[:8]
	}
	if s := cfg.FieldSelector; s != nil {
		sel := *s
		r.cfg.FieldSelector = &sel
	}
	return r, nil
}

func (r *Repo[M]) Name() string { return r.name }

// InstanceID identifies this repository value for the life of the process.
func (r *Repo[M]) InstanceID() uuid.UUID { return r.id }

func (r *Repo[M]) Loop() *reactor.Reactor { return r.loop }

func (r *Repo[M]) RecordSize() int { return r.cfg.RecordSize }

func (r *Repo[M]) Offset() int { return r.cfg.Offset }

// FieldSelector returns a copy of the selector, or nil.
func (r *Repo[M]) FieldSelector() *FieldSelector {
	if r.cfg.FieldSelector == nil {
		return nil
	}
	sel := *r.cfg.FieldSelector
	return &sel
}

// FileSize returns the length of the file in bytes.
func (r *Repo[M]) FileSize() *future.Future[int64] {
	return instrument(r, "file_size", func() *future.Future[int64] {
		return r.io.FileSize(r.handle, r.loop)
	})
}

// Count returns the number of records in the file.
func (r *Repo[M]) Count() *future.Future[int] {
	return instrument(r, "count", func() *future.Future[int] {
		return r.count("Count")
	})
}

func (r *Repo[M]) count(event string) *future.Future[int] {
	return future.Then(r.io.FileSize(r.handle, r.loop), func(size int64) (int, error) {
		rs := int64(r.cfg.RecordSize)
		if size%rs != 0 {
			return 0, &CorruptionError{Event: event}
		}
		return int(size / rs), nil
	})
}

// Range returns the logical ids present in the file.
func (r *Repo[M]) Range() *future.Future[Range] {
	return instrument(r, "range", func() *future.Future[Range] {
		return r.idRange("Range")
	})
}

func (r *Repo[M]) idRange(event string) *future.Future[Range] {
	return future.Then(r.count(event), func(n int) (Range, error) {
		if n == 0 {
			return Range{}, &NoDataError{Model: r.model}
		}
		return Range{Lower: r.cfg.Offset, Upper: r.cfg.Offset + n}, nil
	})
}

// Heights returns the closed id interval of Range.
func (r *Repo[M]) Heights() *future.Future[Heights] {
	return instrument(r, "heights", func() *future.Future[Heights] {
		return future.Map(r.idRange("Heights"), func(rg Range) Heights {
			return Heights{Lower: rg.Lower, Upper: max(rg.Upper-1, 0)}
		})
	})
}

// Find reads the record with logical id id.
func (r *Repo[M]) Find(id int) *future.Future[M] {
	return instrument(r, "find", func() *future.Future[M] {
		return r.find(id, "Find")
	})
}

func (r *Repo[M]) find(id int, event string) *future.Future[M] {
	index, err := r.checkOffset(id, event)
	if err != nil {
		return future.Failed[M](r.loop, err)
	}
	return future.FlatMap(r.count(event), func(count int) *future.Future[M] {
		if index >= count {
			return future.Failed[M](r.loop, r.seekBeyond(id, count, event))
		}
		width := r.cfg.fieldWidth()
		at := r.physicalOffset(index) + int64(r.cfg.fieldStart())
		return future.Then(r.io.ReadAt(r.handle, at, width, r.loop), func(window []byte) (M, error) {
			if len(window) != width {
				var zero M
				return zero, &CorruptionError{Event: event}
			}
			return r.decode(id, window, event)
		})
	})
}

// FindFrom reads every record from id from to the end of the file.
func (r *Repo[M]) FindFrom(from int) *future.Future[[]M] {
	return instrument(r, "find_range", func() *future.Future[[]M] {
		return r.findRange(from, nil, "FindFrom")
	})
}

// FindRange reads the records with ids in [from, through], in id order.
func (r *Repo[M]) FindRange(from, through int) *future.Future[[]M] {
	return instrument(r, "find_range", func() *future.Future[[]M] {
		return r.findRange(from, &through, "FindRange")
	})
}

func (r *Repo[M]) findRange(from int, through *int, event string) *future.Future[[]M] {
	fromIndex, err := r.checkOffset(from, event)
	if err != nil {
		return future.Failed[[]M](r.loop, err)
	}
	return future.FlatMap(r.count(event), func(count int) *future.Future[[]M] {
		last := r.cfg.Offset + count - 1
		if through != nil {
			last = *through
		}
		throughIndex, err := r.checkOffset(last, event)
		if err != nil {
			return future.Failed[[]M](r.loop, err)
		}
		if fromIndex >= count {
			return future.Failed[[]M](r.loop, r.seekBeyond(from, count, event))
		}
		if throughIndex < fromIndex || throughIndex >= count {
			return future.Failed[[]M](r.loop, &SeekError{
				Message: fmt.Sprintf("tried to seek record %d which is either below from %d or beyond file maximum %d",
					last, from, r.lastID(count)),
				Event: event,
			})
		}

		rs := r.cfg.RecordSize
		start, width := r.cfg.fieldStart(), r.cfg.fieldWidth()
		expected := throughIndex - fromIndex + 1
		records := make([]M, 0, expected)

		read := r.io.ReadChunked(r.handle, r.physicalOffset(fromIndex), expected*rs, r.cfg.chunkSize(), r.loop,
			func(chunk []byte) *future.Future[future.Void] {
				if len(chunk)%rs != 0 {
					return future.Failed[future.Void](r.loop, &CorruptionError{Event: event})
				}
				for off := 0; off < len(chunk); off += rs {
					window := chunk[off+start : off+start+width]
					m, err := r.decode(from+len(records), window, event)
					if err != nil {
						return future.Failed[future.Void](r.loop, err)
					}
					records = append(records, m)
				}
				return future.Succeeded(r.loop, future.Void{})
			})

		return future.Then(read, func(future.Void) ([]M, error) {
			if len(records) != expected {
				return nil, &CorruptionError{Event: event}
			}
			return records, nil
		})
	})
}

// Write stores m at its id by read-modify-write of the whole record. Writing
// at or past the end of the file extends it with zero bytes.
func (r *Repo[M]) Write(m M) *future.Future[future.Void] {
	return instrument(r, "write", func() *future.Future[future.Void] {
		return r.write(m, "Write")
	})
}

func (r *Repo[M]) write(m M, event string) *future.Future[future.Void] {
	index, err := r.checkOffset(m.RecordID(), event)
	if err != nil {
		return future.Failed[future.Void](r.loop, err)
	}
	field, err := r.encode(m)
	if err != nil {
		return future.Failed[future.Void](r.loop, err)
	}

	rs := r.cfg.RecordSize
	at := r.physicalOffset(index)
	return future.FlatMap(r.io.ReadAt(r.handle, at, rs, r.loop), func(record []byte) *future.Future[future.Void] {
		switch len(record) {
		case rs:
		case 0:
			record = make([]byte, rs)
		default:
			return future.Failed[future.Void](r.loop, &CorruptionError{Event: event})
		}
		copy(record[r.cfg.fieldStart():], field)
		return r.io.Write(r.handle, at, record, r.loop)
	})
}

// Append writes records at the end of the file. Their ids must continue the
// file without gaps; nothing is written otherwise. records must not be
// empty. A write failing after validation is reported to failfast.Fatal.
func (r *Repo[M]) Append(records []M) *future.Future[future.Void] {
	failfast.If(len(records) > 0, "filerepo: append requires at least one record")

	return instrument(r, "append", func() *future.Future[future.Void] {
		first := records[0].RecordID()
		index, err := r.checkOffset(first, "Append")
		if err != nil {
			return future.Failed[future.Void](r.loop, err)
		}
		return future.FlatMap(r.count("Append"), func(count int) *future.Future[future.Void] {
			if index != count {
				r.logger.Errorf("filerepo: %s: appending id %d to end of file %d, illegal sequencing",
					r.name, first, r.cfg.Offset+count-1)
				return future.Failed[future.Void](r.loop, &OrderingError{ID: first, Want: r.cfg.Offset + count})
			}
			for i, m := range records[1:] {
				if want := first + i + 1; m.RecordID() != want {
					return future.Failed[future.Void](r.loop, &OrderingError{ID: m.RecordID(), Want: want})
				}
			}

			writes := make([]*future.Future[future.Void], len(records))
			for i, m := range records {
				writes[i] = r.write(m, "Append")
			}
			return future.Catch(future.AllSucceed(r.loop, writes), func(err error) (future.Void, error) {
				failfast.Fatal(fmt.Errorf("filerepo: %s: append write failed: %w", r.name, err))
				return future.Void{}, err
			})
		})
	})
}

// Delete truncates the file so that id from and every later record are
// removed, then syncs.
func (r *Repo[M]) Delete(from int) *future.Future[future.Void] {
	return instrument(r, "delete", func() *future.Future[future.Void] {
		index, err := r.checkOffset(from, "Delete")
		if err != nil {
			return future.Failed[future.Void](r.loop, err)
		}
		newSize := r.physicalOffset(index)
		truncated := future.FlatMap(r.io.FileSize(r.handle, r.loop), func(size int64) *future.Future[future.Void] {
			if newSize >= size {
				return future.Failed[future.Void](r.loop, &SeekError{
					Message: fmt.Sprintf("cannot seek beyond end of file, id %d", from),
					Event:   "Delete",
				})
			}
			return r.io.ChangeSize(r.handle, newSize, r.loop)
		})
		return future.FlatMap(truncated, func(future.Void) *future.Future[future.Void] {
			return r.io.Sync(r.handle, r.loop)
		})
	})
}

// Sync makes every completed write durable.
func (r *Repo[M]) Sync() *future.Future[future.Void] {
	return instrument(r, "sync", func() *future.Future[future.Void] {
		return r.io.Sync(r.handle, r.loop)
	})
}

// Close releases the file handle. The repository must not be used afterwards.
func (r *Repo[M]) Close() *future.Future[future.Void] {
	return instrument(r, "close", func() *future.Future[future.Void] {
		return r.io.Close(r.handle, r.loop)
	})
}

func (r *Repo[M]) decode(id int, window []byte, event string) (M, error) {
	m, err := r.codec.Decode(id, window)
	if err != nil {
		var re *ReadError
		if errors.As(err, &re) {
			return m, err
		}
		return m, &ReadError{Message: fmt.Sprintf("decoding record %d", id), Event: event, Err: err}
	}
	return m, nil
}

func (r *Repo[M]) encode(m M) ([]byte, error) {
	width := r.cfg.fieldWidth()
	field, err := r.codec.Encode(make([]byte, 0, width), m)
	if err != nil {
		if errors.Is(err, ErrIllegalArgument) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: encoding record %d: %w", ErrIllegalArgument, m.RecordID(), err)
	}
	if len(field) > width {
		return nil, fmt.Errorf("%w: record %d encodes to %d bytes, field holds %d",
			ErrIllegalArgument, m.RecordID(), len(field), width)
	}
	return field, nil
}
