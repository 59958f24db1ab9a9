package sqlengine

import (
	"path/filepath"
	"testing"

	"github.com/k9db/k9db/internal/catalog"
	"github.com/k9db/k9db/internal/compliance"
	"github.com/k9db/k9db/internal/crypto"
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/kv/bboltkv"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast/hacky"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
	"github.com/k9db/k9db/internal/views"
)

func newTestEngine(t *testing.T) (*Engine, *bboltkv.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "k9db.db")
	store, err := bboltkv.Open(path, bboltkv.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.CreateColumnFamily(catalog.CF); err != nil {
		t.Fatalf("CreateColumnFamily: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	eng := New(shard.NewGraph(), catalog.New(), views.New(), func() crypto.Manager {
		return crypto.NewNoopManager()
	})
	return eng, store
}

func run(t *testing.T, store *bboltkv.Store, fn func(kv.WriteTxn) error) {
	t.Helper()
	if err := store.RunInTransaction(t.Context(), fn); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func ddl(t *testing.T, eng *Engine, store *bboltkv.Store, query string) {
	t.Helper()
	stmt, err := hacky.Parse(query, nil)
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	run(t, store, func(txn kv.WriteTxn) error {
		_, err := eng.ExecuteDDL(txn, store, query, stmt)
		return err
	})
}

func TestCreateTableThenInsertAndSelect(t *testing.T) {
	eng, store := newTestEngine(t)
	ddl(t, eng, store, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY, name TEXT);`)

	touch := compliance.New(eng.Graph, eng.Tables)
	run(t, store, func(txn kv.WriteTxn) error {
		stmt, err := hacky.Parse(`INSERT INTO user VALUES (1, 'Alice');`, nil)
		if err != nil {
			return err
		}
		res, err := eng.Execute(txn, store, touch, stmt)
		if err != nil {
			return err
		}
		if res.Count != 1 {
			t.Fatalf("expected 1 insert op, got %d", res.Count)
		}
		return nil
	})

	run(t, store, func(txn kv.WriteTxn) error {
		stmt, err := hacky.Parse(`SELECT * FROM user WHERE id = 1;`, nil)
		if err != nil {
			return err
		}
		res, err := eng.Execute(txn, store, touch, stmt)
		if err != nil {
			return err
		}
		if len(res.Rows) != 1 || res.Rows[0][1].Text != "Alice" {
			t.Fatalf("unexpected select result: %+v", res.Rows)
		}
		return nil
	})
}

func TestInsertTwoOwnerFanoutReportsTwoOps(t *testing.T) {
	eng, store := newTestEngine(t)
	ddl(t, eng, store, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY, name TEXT);`)
	ddl(t, eng, store, `CREATE TABLE msg (id INT PRIMARY KEY, sender INT OWNED_BY user(id), receiver INT OWNED_BY user(id));`)

	touch := compliance.New(eng.Graph, eng.Tables)
	run(t, store, func(txn kv.WriteTxn) error {
		stmt, _ := hacky.Parse(`INSERT INTO user VALUES (0, 'root');`, nil)
		_, err := eng.Execute(txn, store, touch, stmt)
		return err
	})

	run(t, store, func(txn kv.WriteTxn) error {
		stmt, _ := hacky.Parse(`INSERT INTO user VALUES (10, 'other');`, nil)
		_, err := eng.Execute(txn, store, touch, stmt)
		return err
	})

	run(t, store, func(txn kv.WriteTxn) error {
		stmt, _ := hacky.Parse(`INSERT INTO msg VALUES (1, 0, 10);`, nil)
		res, err := eng.Execute(txn, store, touch, stmt)
		if err != nil {
			return err
		}
		if res.Count != 2 {
			t.Fatalf("expected 2 ops for fanout insert, got %d", res.Count)
		}
		return nil
	})

	run(t, store, func(txn kv.WriteTxn) error {
		stmt, _ := hacky.Parse(`INSERT INTO msg VALUES (2, 0, 0);`, nil)
		res, err := eng.Execute(txn, store, touch, stmt)
		if err != nil {
			return err
		}
		if res.Count != 1 {
			t.Fatalf("expected 1 op for same-shard insert, got %d", res.Count)
		}
		return nil
	})
}

func TestInsertRejectsDanglingForeignKeyOnNonNullableColumn(t *testing.T) {
	eng, store := newTestEngine(t)
	ddl(t, eng, store, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY);`)
	ddl(t, eng, store, `CREATE TABLE msg (id INT PRIMARY KEY, sender INT NOT NULL OWNED_BY user(id));`)

	touch := compliance.New(eng.Graph, eng.Tables)
	err := store.RunInTransaction(t.Context(), func(txn kv.WriteTxn) error {
		stmt, _ := hacky.Parse(`INSERT INTO msg VALUES (1, 99);`, nil)
		_, err := eng.Execute(txn, store, touch, stmt)
		return err
	})
	if !sqlerr.Is(err, sqlerr.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestUpdateMovesRowAndPushesViewDeltas(t *testing.T) {
	eng, store := newTestEngine(t)
	ddl(t, eng, store, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY);`)
	ddl(t, eng, store, `CREATE TABLE addr (id INT PRIMARY KEY, uid INT OWNED_BY user(id));`)

	touch := compliance.New(eng.Graph, eng.Tables)
	run(t, store, func(txn kv.WriteTxn) error {
		for _, q := range []string{
			`INSERT INTO user VALUES (1);`,
			`INSERT INTO user VALUES (2);`,
			`INSERT INTO addr VALUES (1, 1);`,
		} {
			stmt, _ := hacky.Parse(q, nil)
			if _, err := eng.Execute(txn, store, touch, stmt); err != nil {
				return err
			}
		}
		return nil
	})

	run(t, store, func(txn kv.WriteTxn) error {
		stmt, _ := hacky.Parse(`UPDATE addr SET uid = 2 WHERE id = 1;`, nil)
		res, err := eng.Execute(txn, store, touch, stmt)
		if err != nil {
			return err
		}
		if res.Count != 1 {
			t.Fatalf("expected 1 affected row, got %d", res.Count)
		}
		return nil
	})

	snap, err := store.Snapshot(t.Context())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()
	tbl, _ := eng.Tables.Table("addr")
	acc := table.FromSnapshot(snap)
	if rows, err := tbl.GetShard(acc, shard.New("user", "2").String()); err != nil || len(rows) != 1 {
		t.Fatalf("expected row in user__2's shard, got %v rows, err=%v", len(rows), err)
	}
	if rows, err := tbl.GetShard(acc, shard.New("user", "1").String()); err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows left in user__1's shard, got %v rows, err=%v", len(rows), err)
	}
}

func TestComplianceFailsWhenDanglingOwnedRowUncleaned(t *testing.T) {
	eng, store := newTestEngine(t)
	ddl(t, eng, store, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY);`)
	ddl(t, eng, store, `CREATE TABLE addr (id INT PRIMARY KEY, uid INT OWNED_BY user(id));`)

	touch := compliance.New(eng.Graph, eng.Tables)
	run(t, store, func(txn kv.WriteTxn) error {
		stmt, _ := hacky.Parse(`INSERT INTO addr VALUES (1, NULL);`, nil)
		_, err := eng.Execute(txn, store, touch, stmt)
		return err
	})

	snap, err := store.Snapshot(t.Context())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()
	acc := table.FromSnapshot(snap)
	if err := touch.Commit(acc); !sqlerr.Is(err, sqlerr.ErrCompliance) {
		t.Fatalf("expected compliance violation, got %v", err)
	}
}
