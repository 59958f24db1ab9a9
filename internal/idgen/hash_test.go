package idgen

import "testing"

func TestDanglingMarkerIsDeterministic(t *testing.T) {
	a := DanglingMarker("users", []byte("42"))
	b := DanglingMarker("users", []byte("42"))
	if a != b {
		t.Fatalf("expected deterministic marker, got %q and %q", a, b)
	}
}

func TestDanglingMarkerDiffersByTableAndPK(t *testing.T) {
	a := DanglingMarker("users", []byte("42"))
	b := DanglingMarker("users", []byte("43"))
	c := DanglingMarker("comments", []byte("42"))
	if a == b || a == c || b == c {
		t.Fatalf("expected distinct markers, got %q %q %q", a, b, c)
	}
}

func TestEncodeBase36PadsAndTruncates(t *testing.T) {
	if got := EncodeBase36([]byte{0}, 4); got != "0000" {
		t.Fatalf("expected zero-padded output, got %q", got)
	}
	if got := EncodeBase36([]byte{1}, 0); got != "" {
		t.Fatalf("expected empty output for length 0, got %q", got)
	}
}
