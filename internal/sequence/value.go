// Package sequence implements the bit-exact value, row, and key codec
// described by the sharding engine's data model: every key and every row is
// an ordered sequence of textually-encoded values separated by a reserved
// byte, so that a column can be sliced out without parsing its neighbors.
package sequence

import (
	"fmt"
	"strconv"
)

// Kind tags which variant of Value is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindUint
	KindText
	KindDateTime
)

// Separator terminates every encoded value inside a Sequence.
const Separator = byte(0x1E)

// NullByte is the sole encoding of a NULL value.
const NullByte = byte(0x00)

// Value is a tagged union over the column types the engine understands.
// It is a flat, comparable struct rather than an interface so that rows can
// be built and compared without heap allocation on the hot insert/select path.
type Value struct {
	Kind Kind
	Int  int64
	Uint uint64
	Text string // also holds DateTime's textual form
}

func NullValue() Value                { return Value{Kind: KindNull} }
func IntValue(v int64) Value          { return Value{Kind: KindInt, Int: v} }
func UintValue(v uint64) Value        { return Value{Kind: KindUint, Uint: v} }
func TextValue(v string) Value        { return Value{Kind: KindText, Text: v} }
func DateTimeValue(v string) Value    { return Value{Kind: KindDateTime, Text: v} }
func (v Value) IsNull() bool          { return v.Kind == KindNull }

// Encode renders v as its textual form, as it appears inside a Sequence.
// NULL encodes to the single reserved byte; everything else encodes as its
// human-readable text (decimal for integers, verbatim for text/datetime).
func (v Value) Encode() []byte {
	switch v.Kind {
	case KindNull:
		return []byte{NullByte}
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10))
	case KindUint:
		return []byte(strconv.FormatUint(v.Uint, 10))
	case KindText, KindDateTime:
		return []byte(v.Text)
	default:
		panic(fmt.Sprintf("sequence: unknown value kind %d", v.Kind))
	}
}

// Decode parses payload (the bytes between two separators, or the reserved
// NULL byte) into a Value of the given kind. It is the caller's job — via
// the table schema — to know which kind a given column is.
func Decode(kind Kind, payload []byte) (Value, error) {
	if len(payload) == 1 && payload[0] == NullByte {
		return NullValue(), nil
	}
	switch kind {
	case KindNull:
		return NullValue(), nil
	case KindInt:
		n, err := strconv.ParseInt(string(payload), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("sequence: decode int: %w", err)
		}
		return IntValue(n), nil
	case KindUint:
		n, err := strconv.ParseUint(string(payload), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("sequence: decode uint: %w", err)
		}
		return UintValue(n), nil
	case KindText:
		return TextValue(string(payload)), nil
	case KindDateTime:
		return DateTimeValue(string(payload)), nil
	default:
		return Value{}, fmt.Errorf("sequence: unknown target kind %d", kind)
	}
}

// String renders v as it must appear in the text row format of §6.3: NULL
// renders as the literal "NULL", everything else unquoted.
func (v Value) String() string {
	if v.IsNull() {
		return "NULL"
	}
	return string(v.Encode())
}

// Equal compares two values by kind and payload; two NULLs are equal to each
// other here even though SQL NULL famously isn't, because sequence equality
// is used for row/index comparisons, not SQL predicate evaluation.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt:
		return v.Int == o.Int
	case KindUint:
		return v.Uint == o.Uint
	default:
		return v.Text == o.Text
	}
}
