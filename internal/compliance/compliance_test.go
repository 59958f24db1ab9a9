package compliance

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/k9db/k9db/internal/crypto"
	"github.com/k9db/k9db/internal/idgen"
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/kv/bboltkv"
	"github.com/k9db/k9db/internal/plan"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
)

func setup(t *testing.T) (*bboltkv.Store, *shard.Graph, plan.Map, *table.Table) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "k9db.db")
	store, err := bboltkv.Open(path, bboltkv.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	g := shard.NewGraph()
	if err := g.AddTable("user", true, nil); err != nil {
		t.Fatalf("AddTable user: %v", err)
	}
	addr, err := table.New("addr", []table.Column{
		{Name: "id", Kind: sequence.KindInt},
		{Name: "uid", Kind: sequence.KindInt, Nullable: true},
	}, 0, nil, crypto.NewNoopManager())
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}
	if err := g.AddTable("addr", false, []shard.Annotation{
		{Kind: shard.OwnedBy, Column: "uid", RefTable: "user", RefColumn: "id", Nullable: true},
	}); err != nil {
		t.Fatalf("AddTable addr: %v", err)
	}
	for _, cf := range addr.ColumnFamilies() {
		if err := store.CreateColumnFamily(cf); err != nil {
			t.Fatalf("CreateColumnFamily: %v", err)
		}
	}
	return store, g, plan.Map{"addr": addr}, addr
}

func TestCommitFailsWhenOwnedRowStillInDefault(t *testing.T) {
	store, g, tables, addr := setup(t)

	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		r := sequence.Row{sequence.IntValue(0), sequence.NullValue()}
		if err := addr.Put(txn, shard.Default().String(), r); err != nil {
			return err
		}
		return addr.IndexAdd(txn, addr.PKIndex(), shard.Default().String(), r)
	})
	if err != nil {
		t.Fatalf("setup write: %v", err)
	}

	ctx := New(g, tables)
	ctx.Touch("addr")

	snap, err := store.Snapshot(t.Context())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()

	err = ctx.Commit(table.FromSnapshot(snap))
	if !sqlerr.Is(err, sqlerr.ErrCompliance) {
		t.Fatalf("expected compliance violation, got %v", err)
	}

	wantMarker := idgen.DanglingMarker("addr", sequence.IntValue(0).Encode())
	if !strings.Contains(err.Error(), wantMarker) {
		t.Fatalf("expected error to carry dangling marker %q, got %v", wantMarker, err)
	}
}

func TestCommitReportsSameMarkerAcrossRepeatedFailedAttempts(t *testing.T) {
	store, g, tables, addr := setup(t)

	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		r := sequence.Row{sequence.IntValue(0), sequence.NullValue()}
		if err := addr.Put(txn, shard.Default().String(), r); err != nil {
			return err
		}
		return addr.IndexAdd(txn, addr.PKIndex(), shard.Default().String(), r)
	})
	if err != nil {
		t.Fatalf("setup write: %v", err)
	}

	var first, second error
	for _, dst := range []*error{&first, &second} {
		ctx := New(g, tables)
		ctx.Touch("addr")
		snap, err := store.Snapshot(t.Context())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		*dst = ctx.Commit(table.FromSnapshot(snap))
		snap.Close()
	}
	if first.Error() != second.Error() {
		t.Fatalf("expected two passes over the same orphan to report the same marker, got %q and %q", first, second)
	}
}

func TestCommitSucceedsWhenNoOwnedRowOrphaned(t *testing.T) {
	store, g, tables, _ := setup(t)

	ctx := New(g, tables)
	ctx.Touch("addr")

	snap, err := store.Snapshot(t.Context())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()

	if err := ctx.Commit(table.FromSnapshot(snap)); err != nil {
		t.Fatalf("expected clean commit, got %v", err)
	}
}
