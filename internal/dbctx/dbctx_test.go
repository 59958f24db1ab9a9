package dbctx

import (
	"testing"

	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast/hacky"
	"github.com/k9db/k9db/internal/table"
)

func exec(t *testing.T, db *Database, query string) {
	t.Helper()
	_, touch := db.NewTransaction()
	if err := db.Store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		stmt, err := hacky.Parse(query, nil)
		if err != nil {
			return err
		}
		_, err = db.Execute(txn, touch, query, stmt)
		return err
	}); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func TestOpenReplaysSchemaAcrossReopen(t *testing.T) {
	root := t.TempDir()
	ctx := t.Context()

	db, err := Open(ctx, root, "orders")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exec(t, db, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY);`)
	exec(t, db, `CREATE TABLE msg (id INT PRIMARY KEY, sender INT OWNED_BY user(id));`)
	exec(t, db, `INSERT INTO user VALUES (1);`)
	exec(t, db, `INSERT INTO msg VALUES (1, 1);`)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, root, "orders")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, ok := reopened.Engine.Tables.Table("msg"); !ok {
		t.Fatalf("expected msg table to survive reopen via catalog replay")
	}

	snap, err := reopened.Store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()
	acc := table.FromSnapshot(snap)
	msg, _ := reopened.Engine.Tables.Table("msg")
	rows, err := msg.GetShard(acc, shard.New("user", "1").String())
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected the inserted msg row to survive reopen, got %v, err=%v", rows, err)
	}
}

func TestOpenTwiceWithoutCloseFailsOnLock(t *testing.T) {
	root := t.TempDir()
	ctx := t.Context()

	db, err := Open(ctx, root, "orders")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := Open(ctx, root, "orders"); err == nil {
		t.Fatalf("expected second Open of the same database directory to fail while the first is still open")
	}
}

func TestGDPRForgetThroughDatabase(t *testing.T) {
	root := t.TempDir()
	ctx := t.Context()

	db, err := Open(ctx, root, "orders")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	exec(t, db, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY);`)
	exec(t, db, `CREATE TABLE msg (id INT PRIMARY KEY, sender INT OWNED_BY user(id));`)
	exec(t, db, `INSERT INTO user VALUES (1);`)
	exec(t, db, `INSERT INTO msg VALUES (1, 1);`)

	var ops int
	if err := db.Store.RunInTransaction(ctx, func(txn kv.WriteTxn) error {
		var err error
		ops, err = db.GDPR.Forget(txn, "user", sequence.IntValue(1))
		return err
	}); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if ops != 2 {
		t.Fatalf("expected 2 ops (msg row + subject row), got %d", ops)
	}
}
