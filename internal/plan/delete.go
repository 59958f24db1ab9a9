package plan

import (
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/table"
)

// DeleteResult reports which shards a delete actually removed a row from.
type DeleteResult struct {
	Shards []string
	Ops    int
}

// Delete removes every copy of pk from tbl, across every shard the PK index
// says it lives in, per §4.6's delete plan. For each removed row it also
// re-evaluates tbl's OWNS/ACCESSES triggers: a row that was copied into this
// shard only because the deleted row owned it (§8.2's move) is moved back to
// default once nothing else still places it there.
func Delete(txn kv.WriteTxn, g *shard.Graph, tables Tables, tbl *table.Table, pk sequence.Value) (*DeleteResult, error) {
	acc := table.FromWriteTxn(txn)
	hits, err := tbl.IndexLookupDedup(acc, tbl.PKIndex(), []sequence.Value{pk}, 0)
	if err != nil {
		return nil, err
	}

	var shardsDeleted []string
	ops := 0
	for _, h := range hits {
		row, ok, err := tbl.Get(acc, h.Shard, pk)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := deleteRowFromShard(txn, tbl, h.Shard, row); err != nil {
			return nil, err
		}
		ops++
		shardsDeleted = append(shardsDeleted, h.Shard)

		extra, err := cascadeDeleteOwnsTriggers(txn, tables, g, tbl, row, h.Shard)
		if err != nil {
			return nil, err
		}
		ops += extra
	}
	return &DeleteResult{Shards: shardsDeleted, Ops: ops}, nil
}

func cascadeDeleteOwnsTriggers(txn kv.WriteTxn, tables Tables, g *shard.Graph, tbl *table.Table, row sequence.Row, deletedShard string) (int, error) {
	if deletedShard == shard.Default().String() {
		return 0, nil
	}
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

		targetRow, ok, err := target.Get(acc, deletedShard, val)
		if err != nil {
			return ops, err
		}
		if !ok {
			continue
		}

		hits, err := target.IndexLookupDedup(acc, target.PKIndex(), []sequence.Value{val}, 0)
		if err != nil {
			return ops, err
		}
		if err := deleteRowFromShard(txn, target, deletedShard, targetRow); err != nil {
			return ops, err
		}
		ops++

		remaining := 0
		for _, h := range hits {
			if h.Shard != deletedShard {
				remaining++
			}
		}
		if remaining == 0 {
			if err := writeRowToShard(txn, target, shard.Default().String(), targetRow); err != nil {
				return ops, err
			}
			ops++
		}
	}
	return ops, nil
}
