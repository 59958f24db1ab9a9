package plan

import (
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/table"
)

// UpdateResult reports the shards an update added, removed, and left
// untouched (but possibly re-indexed).
type UpdateResult struct {
	Added     []string
	Removed   []string
	Unchanged []string
	Ops       int
}

// Update computes newRow's shard assignment and reconciles it against
// oldRow's current placement, per §4.6's update plan: shards no longer
// implied are deleted, newly implied shards get a fresh copy, and shards
// present in both get their row value and index entries updated in place.
//
// A data-subject table's own shard is fixed by its PK, which UPDATE never
// changes (the PK column is immutable once inserted), so its row always
// stays in exactly the one shard it was already in.
func Update(txn kv.WriteTxn, g *shard.Graph, tables Tables, tbl *table.Table, oldRow, newRow sequence.Row) (*UpdateResult, error) {
	acc := table.FromWriteTxn(txn)
	pk := oldRow[tbl.PKColumn]

	var oldShards []string
	if g.IsDataSubject(tbl.Name) {
		oldShards = []string{shard.New(tbl.Name, pk.String()).String()}
	} else {
		hits, err := tbl.IndexLookupDedup(acc, tbl.PKIndex(), []sequence.Value{pk}, 0)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			oldShards = append(oldShards, h.Shard)
		}
	}

	var newShards []string
	if g.IsDataSubject(tbl.Name) {
		newShards = oldShards
	} else {
		resolved, err := resolveChains(acc, tables, g, tbl, newRow)
		if err != nil {
			return nil, err
		}
		if len(resolved) == 0 {
			newShards = []string{shard.Default().String()}
		} else {
			newShards = resolved
		}
	}

	oldSet := toSet(oldShards)
	newSet := toSet(newShards)

	res := &UpdateResult{}
	for _, s := range oldShards {
		if !newSet[s] {
			if err := deleteRowFromShard(txn, tbl, s, oldRow); err != nil {
				return nil, err
			}
			res.Removed = append(res.Removed, s)
			res.Ops++
		}
	}
	for _, s := range newShards {
		if !oldSet[s] {
			if err := writeRowToShard(txn, tbl, s, newRow); err != nil {
				return nil, err
			}
			res.Added = append(res.Added, s)
			res.Ops++
		}
	}
	for _, s := range newShards {
		if !oldSet[s] {
			continue
		}
		if err := tbl.Put(txn, s, newRow); err != nil {
			return nil, err
		}
		for _, idx := range tbl.Indices() {
			if err := tbl.IndexUpdate(txn, idx, s, oldRow, newRow); err != nil {
				return nil, err
			}
		}
		res.Unchanged = append(res.Unchanged, s)
		res.Ops++
	}
	return res, nil
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
