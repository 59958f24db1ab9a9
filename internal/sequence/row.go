package sequence

import "strings"

// DecodeRow decodes a raw row-value sequence into typed columns according to
// kinds (the table's declared column types, in column order).
func DecodeRow(kinds []Kind, raw []byte) ([]Value, error) {
	seq := Wrap(raw)
	cols := seq.Split()
	if len(cols) != len(kinds) {
		return nil, &DecodeError{Want: len(kinds), Got: len(cols)}
	}
	values := make([]Value, len(kinds))
	for i, kind := range kinds {
		v, err := Decode(kind, cols[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// DecodeError reports a column-count mismatch between a schema and a raw
// row payload — this should never happen for rows k9db itself wrote, and
// indicates storage corruption or a schema change applied without a
// migration.
type DecodeError struct {
	Want, Got int
}

func (e *DecodeError) Error() string {
	return "sequence: row has wrong column count"
}

// Row is a fully-decoded, typed row: the in-memory counterpart of a row
// Sequence, carried through the plan compiler and SQL engine.
type Row []Value

// String renders the row in the text format of §6.3: |c0|c1|...|cn|, with
// NULL rendered as the literal NULL and strings unquoted.
func (r Row) String() string {
	var b strings.Builder
	b.WriteByte('|')
	for _, v := range r {
		b.WriteString(v.String())
		b.WriteByte('|')
	}
	return b.String()
}

// Clone returns a deep-enough copy of r (Value is a flat struct, so a slice
// copy suffices) so that callers can mutate the result without aliasing the
// original row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Equal compares two rows column-by-column.
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Encode renders the row back into its on-disk Sequence form.
func (r Row) Encode() *Sequence {
	return NewRow(r)
}
