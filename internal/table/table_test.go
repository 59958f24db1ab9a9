package table

import (
	"path/filepath"
	"testing"

	"github.com/k9db/k9db/internal/crypto"
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/kv/bboltkv"
	"github.com/k9db/k9db/internal/sequence"
)

func newTestTable(t *testing.T, mgr crypto.Manager) (*Table, *bboltkv.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "k9db.db")
	store, err := bboltkv.Open(path, bboltkv.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tbl, err := New("users", []Column{
		{Name: "id", Kind: sequence.KindInt},
		{Name: "email", Kind: sequence.KindText},
		{Name: "name", Kind: sequence.KindText, Nullable: true},
	}, 0, []int{1}, mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, cf := range tbl.ColumnFamilies() {
		if err := store.CreateColumnFamily(cf); err != nil {
			t.Fatalf("CreateColumnFamily %s: %v", cf, err)
		}
	}
	return tbl, store
}

func row(id int64, email, name string) sequence.Row {
	return sequence.Row{
		sequence.IntValue(id),
		sequence.TextValue(email),
		sequence.TextValue(name),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	mgr := crypto.NewNoopManager()
	tbl, store := newTestTable(t, mgr)

	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		r := row(1, "a@example.com", "Alice")
		if err := tbl.Put(txn, "default__default", r); err != nil {
			return err
		}
		return tbl.IndexAdd(txn, tbl.PKIndex(), "default__default", r)
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := store.Snapshot(t.Context())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()

	got, ok, err := tbl.Get(FromSnapshot(snap), "default__default", sequence.IntValue(1))
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	want := row(1, "a@example.com", "Alice")
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestGetShardPrefixScan(t *testing.T) {
	mgr := crypto.NewNoopManager()
	tbl, store := newTestTable(t, mgr)

	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		for i, shard := range []string{"user__1", "user__1", "user__2"} {
			r := row(int64(i), "x@example.com", "X")
			if err := tbl.Put(txn, shard, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, _ := store.Snapshot(t.Context())
	defer snap.Close()
	rows, err := tbl.GetShard(FromSnapshot(snap), "user__1")
	if err != nil {
		t.Fatalf("GetShard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows in user__1, got %d", len(rows))
	}
}

func TestCheckUniqueAndLock(t *testing.T) {
	mgr := crypto.NewNoopManager()
	tbl, store := newTestTable(t, mgr)

	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		exists, err := tbl.CheckUniqueAndLock(txn, sequence.IntValue(1))
		if err != nil {
			return err
		}
		if exists {
			t.Fatalf("pk 1 should not exist yet")
		}
		r := row(1, "a@example.com", "Alice")
		if err := tbl.Put(txn, "default__default", r); err != nil {
			return err
		}
		return tbl.IndexAdd(txn, tbl.PKIndex(), "default__default", r)
	})
	if err != nil {
		t.Fatalf("txn1: %v", err)
	}

	err = store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		exists, err := tbl.CheckUniqueAndLock(txn, sequence.IntValue(1))
		if err != nil {
			return err
		}
		if !exists {
			t.Fatalf("pk 1 should now exist")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("txn2: %v", err)
	}
}

func TestIndexLookupOnUniqueEmailColumn(t *testing.T) {
	mgr := crypto.NewNoopManager()
	tbl, store := newTestTable(t, mgr)
	emailIdx := tbl.Indices()[1]

	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		r := row(1, "a@example.com", "Alice")
		if err := tbl.Put(txn, "default__default", r); err != nil {
			return err
		}
		if err := tbl.IndexAdd(txn, tbl.PKIndex(), "default__default", r); err != nil {
			return err
		}
		return tbl.IndexAdd(txn, emailIdx, "default__default", r)
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, _ := store.Snapshot(t.Context())
	defer snap.Close()
	hits, err := tbl.IndexLookup(FromSnapshot(snap), emailIdx, []sequence.Value{sequence.TextValue("a@example.com")}, 0)
	if err != nil {
		t.Fatalf("IndexLookup: %v", err)
	}
	if len(hits) != 1 || hits[0].Shard != "default__default" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestSelectIndexPriority(t *testing.T) {
	mgr := crypto.NewNoopManager()
	tbl, _ := newTestTable(t, mgr)

	if got := tbl.SelectIndex(map[int]bool{0: true, 1: true}); got != tbl.PKIndex() {
		t.Fatalf("PK-constrained query must select the PK index, got %v", got)
	}
	if got := tbl.SelectIndex(map[int]bool{1: true}); got == nil || got == tbl.PKIndex() {
		t.Fatalf("email-constrained query must select the unique email index, got %v", got)
	}
	if got := tbl.SelectIndex(map[int]bool{2: true}); got != nil {
		t.Fatalf("no matching index should select nil (full scan), got %v", got)
	}
}

func TestIndexUpdateMovesEntry(t *testing.T) {
	mgr := crypto.NewNoopManager()
	tbl, store := newTestTable(t, mgr)
	emailIdx := tbl.Indices()[1]

	old := row(1, "old@example.com", "Alice")
	updated := row(1, "new@example.com", "Alice")

	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		if err := tbl.Put(txn, "default__default", old); err != nil {
			return err
		}
		if err := tbl.IndexAdd(txn, emailIdx, "default__default", old); err != nil {
			return err
		}
		if err := tbl.Put(txn, "default__default", updated); err != nil {
			return err
		}
		return tbl.IndexUpdate(txn, emailIdx, "default__default", old, updated)
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, _ := store.Snapshot(t.Context())
	defer snap.Close()
	oldHits, _ := tbl.IndexLookup(FromSnapshot(snap), emailIdx, []sequence.Value{sequence.TextValue("old@example.com")}, 0)
	newHits, _ := tbl.IndexLookup(FromSnapshot(snap), emailIdx, []sequence.Value{sequence.TextValue("new@example.com")}, 0)
	if len(oldHits) != 0 {
		t.Fatalf("old email entry should be gone, got %+v", oldHits)
	}
	if len(newHits) != 1 {
		t.Fatalf("new email entry should exist, got %+v", newHits)
	}
}
