package sqlast

import "github.com/k9db/k9db/internal/sequence"

// Coerce reconciles a literal parsed by the hacky parser (always KindInt or
// KindText/KindNull) against a column's declared Kind. Int and Uint share
// an identical textual encoding for non-negative values, so a literal typed
// Int against a Uint column (or vice versa) is re-tagged rather than
// re-parsed; anything else is returned unchanged and left for the caller to
// reject as a type mismatch.
func Coerce(kind sequence.Kind, v sequence.Value) sequence.Value {
	if v.Kind == kind {
		return v
	}
	switch kind {
	case sequence.KindUint:
		if v.Kind == sequence.KindInt && v.Int >= 0 {
			return sequence.UintValue(uint64(v.Int))
		}
	case sequence.KindInt:
		if v.Kind == sequence.KindUint {
			return sequence.IntValue(int64(v.Uint))
		}
	case sequence.KindDateTime:
		if v.Kind == sequence.KindText {
			return sequence.DateTimeValue(v.Text)
		}
	}
	return v
}
