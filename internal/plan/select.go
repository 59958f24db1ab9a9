package plan

import (
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/table"
)

// Select resolves a WHERE clause's equality constraints (column index ->
// value) against tbl's index-selection algorithm (§4.4) and returns every
// matching row. An empty constrained map always falls back to a full scan.
func Select(acc table.Accessor, tbl *table.Table, constrained map[int]sequence.Value) ([]sequence.Row, error) {
	haveIdx := make(map[int]bool, len(constrained))
	for c := range constrained {
		haveIdx[c] = true
	}
	idx := tbl.SelectIndex(haveIdx)
	if idx == nil {
		return tbl.GetAll(acc)
	}

	values := make([]sequence.Value, len(idx.Columns))
	for i, c := range idx.Columns {
		values[i] = constrained[c]
	}
	hits, err := tbl.IndexLookupDedup(acc, idx, values, 0)
	if err != nil {
		return nil, err
	}

	rows := make([]sequence.Row, 0, len(hits))
	for _, h := range hits {
		row, ok, err := tbl.Get(acc, h.Shard, h.PK)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
