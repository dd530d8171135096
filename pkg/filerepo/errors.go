package filerepo

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every structured error below matches exactly one of them
// with errors.Is.
var (
	ErrIllegalArgument = errors.New("filerepo: illegal argument")
	ErrSeek            = errors.New("filerepo: seek error")
	ErrFileCorruption  = errors.New("filerepo: file corruption")
	ErrFileEmpty       = errors.New("filerepo: no data found, file empty")
	ErrAppendOrdering  = errors.New("filerepo: append failed, incorrect ordering")
	ErrRead            = errors.New("filerepo: read error")
	ErrNotFound        = errors.New("filerepo: not found")
	ErrNoExactMatch    = errors.New("filerepo: no exact match found")
)

// SeekError reports an id or id range outside the readable part of the file.
type SeekError struct {
	Message string
	Event   string
}

func (e *SeekError) Error() string {
	return fmt.Sprintf("filerepo: seek error in %s: %s", e.Event, e.Message)
}

func (e *SeekError) Is(target error) bool { return target == ErrSeek }

// CorruptionError reports a file whose length is not a multiple of the
// record size, or a scan that produced the wrong number of records.
type CorruptionError struct {
	Event string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("filerepo: file corruption detected in %s", e.Event)
}

func (e *CorruptionError) Is(target error) bool { return target == ErrFileCorruption }

// NoDataError is returned by operations that need at least one record.
type NoDataError struct {
	Model string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("filerepo: no data found, file empty (%s)", e.Model)
}

func (e *NoDataError) Is(target error) bool { return target == ErrFileEmpty }

// OrderingError rejects an append whose ids do not continue the file.
type OrderingError struct {
	ID   int
	Want int
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("filerepo: append failed, incorrect ordering: got id %d, want %d", e.ID, e.Want)
}

func (e *OrderingError) Is(target error) bool { return target == ErrAppendOrdering }

// ReadError wraps a codec decode failure.
type ReadError struct {
	Message string
	Event   string
	Err     error
}

func (e *ReadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("filerepo: read error in %s: %s", e.Event, e.Message)
	}
	return fmt.Sprintf("filerepo: read error in %s: %s: %v", e.Event, e.Message, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrRead }

// NoExactMatchError is returned by a search that exhausted its range. Left
// and Right are the records bounding the position the target would occupy.
type NoExactMatchError[M Model] struct {
	Left  M
	Right M
}

func (e *NoExactMatchError[M]) Error() string {
	return fmt.Sprintf("filerepo: no exact match found between records %d and %d",
		e.Left.RecordID(), e.Right.RecordID())
}

func (e *NoExactMatchError[M]) Is(target error) bool { return target == ErrNoExactMatch }

// CompoundError aggregates failures of independent actions, in the order
// the actions were supplied.
type CompoundError struct {
	Errors []error
}

func (e *CompoundError) Error() string {
	var b strings.Builder
	b.WriteString("filerepo: close finished with errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n\t%d:\t%v", i, err)
	}
	return b.String()
}

func (e *CompoundError) Unwrap() []error { return e.Errors }

func notFound(left, right int) error {
	return fmt.Errorf("%w: left index %d greater than right index %d", ErrNotFound, left, right)
}
