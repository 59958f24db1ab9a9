package plan

import (
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
)

// InsertResult reports where a row landed and how many storage operations
// the insert performed, matching §4.7's "return 1 + number of additional
// copies" contract.
type InsertResult struct {
	Shards   []string
	Dangling bool
	Ops      int
}

// Insert writes row into every shard tbl's ownership chains imply, per
// §4.6's insert plan. Data-subject tables place their row directly by PK;
// every other table resolves its chains via resolveChains, falling back to
// the default shard (marked dangling) when no chain yields a shard at all.
//
// If tbl declares an OWNS/ACCESSES annotation on some other table (a
// variable-ownership trigger), inserting here also re-evaluates and, if
// necessary, moves the referenced row — the "variable ownership copy
// explosion" of §8.2.
func Insert(txn kv.WriteTxn, g *shard.Graph, tables Tables, tbl *table.Table, row sequence.Row) (*InsertResult, error) {
	acc := table.FromWriteTxn(txn)
	pk := row[tbl.PKColumn]

	dup, err := tbl.CheckUniqueAndLock(txn, pk)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: duplicate primary key %s", tbl.Name, pk.String())
	}

	var shards []string
	dangling := false

	if g.IsDataSubject(tbl.Name) {
		shards = []string{shard.New(tbl.Name, pk.String()).String()}
	} else {
		resolved, err := resolveChains(acc, tables, g, tbl, row)
		if err != nil {
			return nil, err
		}
		if len(resolved) == 0 {
			shards = []string{shard.Default().String()}
			dangling = true
		} else {
			shards = resolved
		}
	}

	for _, s := range shards {
		if err := writeRowToShard(txn, tbl, s, row); err != nil {
			return nil, err
		}
	}

	ops := len(shards)
	extra, err := cascadeOwnsTriggers(txn, tables, g, tbl, row, shards)
	if err != nil {
		return nil, err
	}
	ops += extra

	return &InsertResult{Shards: shards, Dangling: dangling, Ops: ops}, nil
}

func writeRowToShard(txn kv.WriteTxn, tbl *table.Table, shardName string, row sequence.Row) error {
	if err := tbl.Put(txn, shardName, row); err != nil {
		return err
	}
	for _, idx := range tbl.Indices() {
		if err := tbl.IndexAdd(txn, idx, shardName, row); err != nil {
			return err
		}
	}
	return nil
}

func deleteRowFromShard(txn kv.WriteTxn, tbl *table.Table, shardName string, row sequence.Row) error {
	for _, idx := range tbl.Indices() {
		if err := tbl.IndexDelete(txn, idx, shardName, row, true); err != nil {
			return err
		}
	}
	return tbl.Delete(txn, shardName, row[tbl.PKColumn])
}

// cascadeOwnsTriggers moves the row(s) referenced by tbl's OWNS/ACCESSES
// annotations into the shards tbl's own row was just written to, copying the
// referenced row out of the default shard when it was only dangling there.
// Only an existing default-shard placement is ever vacated: a row already
// resolved into a concrete owner's shard by some other path is left alone,
// since variable ownership can legitimately fan in from multiple owners.
func cascadeOwnsTriggers(txn kv.WriteTxn, tables Tables, g *shard.Graph, tbl *table.Table, row sequence.Row, shardsWritten []string) (int, error) {
	triggers := g.OwnsTriggers(tbl.Name)
	if len(triggers) == 0 {
		return 0, nil
	}
	acc := table.FromWriteTxn(txn)
	ops := 0

	for _, trig := range triggers {
		col, ok := tbl.ColumnIndex(trig.SourceColumn)
		if !ok {
			continue
		}
		val := row[col]
		if val.IsNull() {
			continue
		}
		target, ok := tables.Table(trig.TargetTable)
		if !ok {
			continue
		}

		hits, err := target.IndexLookupDedup(acc, target.PKIndex(), []sequence.Value{val}, 0)
		if err != nil {
			return ops, err
		}
		if len(hits) == 0 {
			continue
		}

		existing := map[string]bool{}
		for _, h := range hits {
			existing[h.Shard] = true
		}

		var targetRow sequence.Row
		var foundShard string
		for _, h := range hits {
			r, ok, err := target.Get(acc, h.Shard, val)
			if err != nil {
				return ops, err
			}
			if ok {
				targetRow, foundShard = r, h.Shard
				break
			}
		}
		if targetRow == nil {
			continue
		}

		for _, s := range shardsWritten {
			if existing[s] {
				continue
			}
			if err := writeRowToShard(txn, target, s, targetRow); err != nil {
				return ops, err
			}
			ops++
		}

		if foundShard == shard.Default().String() && len(shardsWritten) > 0 {
			if err := deleteRowFromShard(txn, target, foundShard, targetRow); err != nil {
				return ops, err
			}
			ops++
		}
	}
	return ops, nil
}
