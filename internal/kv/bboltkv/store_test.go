package bboltkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sqlerr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "k9db.db")
	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.CreateColumnFamily("users"); err != nil {
		t.Fatalf("CreateColumnFamily: %v", err)
	}
	return s
}

func TestWriteTxnPutGetForUpdateCommit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	txn, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := txn.Put("users", []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := txn.GetForUpdate("users", []byte("k1"))
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("GetForUpdate in-flight: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()
	v, ok, err = snap.Get("users", []byte("k1"))
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("Get after commit: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestWriteTxnRollbackDiscardsWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	txn, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := txn.Put("users", []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	snap, _ := s.Snapshot(ctx)
	defer snap.Close()
	_, ok, err := snap.Get("users", []byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("rolled-back write should not be visible")
	}
}

func TestIteratorRespectsPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(txn kv.WriteTxn) error {
		rows := map[string]string{
			"user__0\x1e1": "a",
			"user__0\x1e2": "b",
			"user__1\x1e1": "c",
		}
		for k, v := range rows {
			if err := txn.Put("users", []byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()

	it, err := snap.Iterator("users", []byte("user__0"))
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	defer it.Close()

	count := 0
	for ; it.Valid(); it.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 keys under prefix user__0, got %d", count)
	}
}

func TestRunInTransactionRetriesOnlyTransientConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	attempts := 0
	err := s.RunInTransaction(ctx, func(txn kv.WriteTxn) error {
		attempts++
		return sqlerr.New(sqlerr.ErrSchemaViolation, "not a conflict")
	})
	if err == nil || !sqlerr.Is(err, sqlerr.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-transient error must not retry, got %d attempts", attempts)
	}
}
