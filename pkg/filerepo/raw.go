package filerepo

import (
	"bytes"

	"github.com/fluxorio/filerepo/pkg/fileio"
	"github.com/fluxorio/filerepo/pkg/future"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

// RawRecord is an uninterpreted record.
type RawRecord struct {
	ID   int
	Data []byte
}

func (r RawRecord) RecordID() int { return r.ID }

// RawCodec stores RawRecord bytes unchanged.
type RawCodec struct{}

func (RawCodec) Decode(id int, window []byte) (RawRecord, error) {
	return RawRecord{ID: id, Data: bytes.Clone(window)}, nil
}

func (RawCodec) Encode(dst []byte, m RawRecord) ([]byte, error) {
	return append(dst, m.Data...), nil
}

// OpenFile opens path for reading and writing, creating it with mode 0600.
func OpenFile(provider fileio.Provider, path string, loop *reactor.Reactor) *future.Future[*fileio.Handle] {
	return provider.Open(path, fileio.ModeReadWrite, fileio.AllowCreation(0o600), loop)
}

// Open opens path with OpenFile and wraps the handle in a repository.
func Open[M Model](provider fileio.Provider, path string, cfg Config, codec Codec[M], loop *reactor.Reactor, opts ...Option) *future.Future[*Repo[M]] {
	if err := cfg.Validate(); err != nil {
		return future.Failed[*Repo[M]](loop, err)
	}
	return future.Then(OpenFile(provider, path, loop), func(h *fileio.Handle) (*Repo[M], error) {
		return New(cfg, codec, provider, h, loop, opts...)
	})
}
