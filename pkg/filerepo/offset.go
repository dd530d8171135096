package filerepo

import (
	"fmt"
	"math"
)

// checkOffset translates a logical id into a physical index. The index is
// small enough that the byte offset of the end of its record fits an int64.
func (r *Repo[M]) checkOffset(id int, event string) (int, error) {
	if id < r.cfg.Offset {
		return 0, &SeekError{
			Message: fmt.Sprintf("cannot read below offset [%d], id %d", r.cfg.Offset, id),
			Event:   event,
		}
	}
	index := id - r.cfg.Offset
	if int64(index) > r.maxIndex() {
		return 0, &SeekError{
			Message: fmt.Sprintf("id %d is beyond the addressable end of the file", id),
			Event:   event,
		}
	}
	return index, nil
}

// maxIndex is the largest physical index whose record ends at or before
// math.MaxInt64.
func (r *Repo[M]) maxIndex() int64 {
	rs := int64(r.cfg.RecordSize)
	return (math.MaxInt64 - rs) / rs
}

// lastID is the highest valid logical id for count records, clamped to offset.
func (r *Repo[M]) lastID(count int) int {
	return r.cfg.Offset + max(0, count-1)
}

func (r *Repo[M]) seekBeyond(id, count int, event string) error {
	return &SeekError{
		Message: fmt.Sprintf("tried to seek record %d (file maximum %d)", id, r.lastID(count)),
		Event:   event,
	}
}

// physicalOffset is the byte position of the start of a physical record.
func (r *Repo[M]) physicalOffset(index int) int64 {
	return int64(index) * int64(r.cfg.RecordSize)
}
