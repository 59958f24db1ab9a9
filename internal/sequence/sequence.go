package sequence

import (
	"bytes"
	"fmt"
)

// Sequence is an ordered list of values encoded back-to-back, each followed
// by Separator. It supports O(1)-amortized append and O(column index) random
// access without touching neighboring columns, matching the row-key and
// row-value encodings of the storage layer (RocksdbRecord's key/value pair
// in the reference implementation).
type Sequence struct {
	buf     []byte
	offsets []int // start offset of column i; len(offsets) == number of columns appended so far
}

// New returns an empty, growable Sequence.
func New() *Sequence {
	return &Sequence{}
}

// Wrap treats an existing byte slice (e.g. a key or value read back from the
// KV store) as a Sequence without copying it. Offsets are discovered lazily
// as columns are accessed.
func Wrap(raw []byte) *Sequence {
	return &Sequence{buf: raw}
}

// Append adds v as the next column.
func (s *Sequence) Append(v Value) {
	s.offsets = append(s.offsets, len(s.buf))
	s.buf = append(s.buf, v.Encode()...)
	s.buf = append(s.buf, Separator)
}

// Bytes returns the raw encoded sequence, suitable for writing to the KV
// store as a key or value.
func (s *Sequence) Bytes() []byte {
	return s.buf
}

// Len returns the number of columns discovered so far by indexing or
// iteration. Use Count to force full discovery.
func (s *Sequence) Len() int {
	return len(s.offsets)
}

// Count walks the whole sequence once, discovering every column offset, and
// returns the total column count.
func (s *Sequence) Count() int {
	s.discoverAll()
	return len(s.offsets)
}

// discoverUpTo ensures offsets are known for columns 0..=i.
func (s *Sequence) discoverUpTo(i int) {
	pos := 0
	if len(s.offsets) > 0 {
		last := s.offsets[len(s.offsets)-1]
		// find end of the last discovered column to resume from there
		end := bytes.IndexByte(s.buf[last:], Separator)
		if end < 0 {
			return // malformed; nothing more to discover
		}
		pos = last + end + 1
	}
	for len(s.offsets) <= i && pos <= len(s.buf) {
		end := bytes.IndexByte(s.buf[pos:], Separator)
		if end < 0 {
			break
		}
		s.offsets = append(s.offsets, pos)
		pos = pos + end + 1
	}
}

func (s *Sequence) discoverAll() {
	for {
		before := len(s.offsets)
		s.discoverUpTo(len(s.offsets))
		if len(s.offsets) == before {
			break
		}
	}
}

// At returns the zero-copy slice of the i-th column's payload, excluding the
// trailing separator.
func (s *Sequence) At(i int) ([]byte, error) {
	s.discoverUpTo(i)
	if i < 0 || i >= len(s.offsets) {
		return nil, fmt.Errorf("sequence: column %d out of range (have %d)", i, len(s.offsets))
	}
	start := s.offsets[i]
	end := bytes.IndexByte(s.buf[start:], Separator)
	if end < 0 {
		return nil, fmt.Errorf("sequence: column %d missing separator", i)
	}
	return s.buf[start : start+end], nil
}

// Split materializes every column's payload in one pass.
func (s *Sequence) Split() [][]byte {
	s.discoverAll()
	out := make([][]byte, 0, len(s.offsets))
	for i := range s.offsets {
		start := s.offsets[i]
		end := bytes.IndexByte(s.buf[start:], Separator)
		out = append(out, s.buf[start:start+end])
	}
	return out
}

// Prefix returns the raw bytes of the first n columns, including their
// trailing separators — this is exactly the byte string an ordered-KV
// prefix scan should seek to (§4.4's composite index encoding).
func (s *Sequence) Prefix(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	s.discoverUpTo(n - 1)
	if n > len(s.offsets) {
		return nil, fmt.Errorf("sequence: prefix of %d columns requested, only %d present", n, len(s.offsets))
	}
	start := s.offsets[n-1]
	end := bytes.IndexByte(s.buf[start:], Separator)
	if end < 0 {
		return nil, fmt.Errorf("sequence: column %d missing separator", n-1)
	}
	return s.buf[:start+end+1], nil
}

// NewRowKey builds the two-column [shard_name, primary_key] row key sequence
// described by §3.
func NewRowKey(shardName string, pk Value) *Sequence {
	s := New()
	s.Append(TextValue(shardName))
	s.Append(pk)
	return s
}

// NewIndexKey builds an index-column-family key of the form
// <indexed_value(s)> 0x1E <shard> 0x1E <pk> 0x1E described by §3.
func NewIndexKey(indexed []Value, shardName string, pk Value) *Sequence {
	s := New()
	for _, v := range indexed {
		s.Append(v)
	}
	s.Append(TextValue(shardName))
	s.Append(pk)
	return s
}

// NewRow builds a row-value sequence from column values in declared order.
func NewRow(values []Value) *Sequence {
	s := New()
	for _, v := range values {
		s.Append(v)
	}
	return s
}

// HasReservedBytes reports whether payload contains the separator or NULL
// byte in a position that is not the sole-NULL encoding — a violation of the
// codec invariant from §3.
func HasReservedBytes(payload []byte) bool {
	if len(payload) == 1 && payload[0] == NullByte {
		return false
	}
	return bytes.IndexByte(payload, Separator) >= 0 || bytes.IndexByte(payload, NullByte) >= 0
}
