package metrics

import (
	"context"
	"io"
	"testing"
)

func TestNewRecorderAndRecordCounters(t *testing.T) {
	r, err := New(io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	r.RecordWrite(ctx, "msg", 2)
	r.RecordDelete(ctx, "msg", 1)
	r.RecordAnonymize(ctx, "msg", 1)

	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestNilRecorderIsANoop(t *testing.T) {
	var r *Recorder
	ctx := context.Background()
	r.RecordWrite(ctx, "msg", 5)
	r.RecordDelete(ctx, "msg", 5)
	r.RecordAnonymize(ctx, "msg", 5)
	if _, span := r.StartSpan(ctx, "Commit"); span == nil {
		t.Fatalf("expected a non-nil no-op span from a nil Recorder")
	}
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown on nil Recorder: %v", err)
	}
}
