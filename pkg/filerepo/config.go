package filerepo

import "fmt"

// readChunkBytes is the target size of one chunk of a range scan.
const readChunkBytes = 0xffff + 1

// FieldSelector is an inclusive byte range within a record.
type FieldSelector struct {
	Lower int `yaml:"lower" json:"lower"`
	Upper int `yaml:"upper" json:"upper"`
}

// Width is the number of bytes the selector covers.
func (s FieldSelector) Width() int {
	return s.Upper - s.Lower + 1
}

// Config fixes the record layout of a repository.
type Config struct {
	RecordSize int
	// Offset is the logical id of the first physical record.
	Offset int
	// FieldSelector restricts reads and writes to part of each record.
	FieldSelector *FieldSelector
}

func (c Config) Validate() error {
	if c.RecordSize <= 0 {
		return fmt.Errorf("%w: record size must be positive, got %d", ErrIllegalArgument, c.RecordSize)
	}
	if c.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrIllegalArgument, c.Offset)
	}
	if s := c.FieldSelector; s != nil {
		if s.Lower < 0 || s.Upper < s.Lower || s.Upper >= c.RecordSize {
			return fmt.Errorf("%w: field selector [%d, %d] outside record of %d bytes",
				ErrIllegalArgument, s.Lower, s.Upper, c.RecordSize)
		}
	}
	return nil
}

func (c Config) fieldStart() int {
	if c.FieldSelector == nil {
		return 0
	}
	return c.FieldSelector.Lower
}

func (c Config) fieldWidth() int {
	if c.FieldSelector == nil {
		return c.RecordSize
	}
	return c.FieldSelector.Width()
}

// chunkSize is a whole number of records close to readChunkBytes.
func (c Config) chunkSize() int {
	return c.RecordSize * max(1, readChunkBytes/c.RecordSize)
}

// Range is a half-open interval of logical ids.
type Range struct {
	Lower int
	Upper int
}

func (r Range) Len() int { return r.Upper - r.Lower }

func (r Range) Contains(id int) bool { return id >= r.Lower && id < r.Upper }

// Heights is a closed interval of logical ids.
type Heights struct {
	Lower int
	Upper int
}
