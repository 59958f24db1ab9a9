package sqlengine

import (
	"github.com/k9db/k9db/internal/compliance"
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/plan"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
)

func buildRow(tbl *table.Table, columns []string, values []sequence.Value) (sequence.Row, error) {
	row := make(sequence.Row, len(tbl.Columns))
	for i := range row {
		row[i] = sequence.NullValue()
	}
	if len(columns) == 0 {
		if len(values) != len(tbl.Columns) {
			return nil, sqlerr.New(sqlerr.ErrInvalidSQL, "table %s: expected %d values, got %d", tbl.Name, len(tbl.Columns), len(values))
		}
		for i, v := range values {
			row[i] = sqlast.Coerce(tbl.Columns[i].Kind, v)
		}
		return row, nil
	}
	if len(columns) != len(values) {
		return nil, sqlerr.New(sqlerr.ErrInvalidSQL, "table %s: %d columns but %d values", tbl.Name, len(columns), len(values))
	}
	for i, col := range columns {
		idx, ok := tbl.ColumnIndex(col)
		if !ok {
			return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: no column %q", tbl.Name, col)
		}
		row[idx] = sqlast.Coerce(tbl.Columns[idx].Kind, values[i])
	}
	return row, nil
}

// execInsert implements §4.7's INSERT/REPLACE contract: a REPLACE first
// deletes any row sharing the new PK from every shard it currently
// occupies, then inserts normally; the reported count is deletes + inserts
// for REPLACE, or 1 + additional copies for a plain INSERT.
func (e *Engine) execInsert(txn kv.WriteTxn, touch *compliance.Transaction, s *sqlast.Insert) (*Result, error) {
	tbl, err := e.tableOrErr(s.Table)
	if err != nil {
		return nil, err
	}
	row, err := buildRow(tbl, s.Columns, s.Values)
	if err != nil {
		return nil, err
	}

	count := 0
	if s.Replace {
		acc := table.FromWriteTxn(txn)
		hits, err := tbl.IndexLookupDedup(acc, tbl.PKIndex(), []sequence.Value{row[tbl.PKColumn]}, 0)
		if err != nil {
			return nil, err
		}
		var oldRows []sequence.Row
		for _, h := range hits {
			if r, ok, err := tbl.Get(acc, h.Shard, row[tbl.PKColumn]); err == nil && ok {
				oldRows = append(oldRows, r)
			}
		}

		delRes, err := plan.Delete(txn, e.Graph, e.Tables, tbl, row[tbl.PKColumn])
		if err != nil {
			return nil, err
		}
		count += delRes.Ops
		for _, old := range oldRows {
			e.Views.Push(s.Table, old, false)
		}
	}

	res, err := plan.Insert(txn, e.Graph, e.Tables, tbl, row)
	if err != nil {
		return nil, err
	}
	count += res.Ops
	for range res.Shards {
		e.Views.Push(s.Table, row, true)
	}
	touch.Touch(s.Table)
	return &Result{Count: count}, nil
}

// execUpdate resolves every row matching s.Where, applies the SET list
// (including `+column` accumulation), and runs the update plan per matched
// row, per §4.7 and §4.6.
func (e *Engine) execUpdate(txn kv.WriteTxn, touch *compliance.Transaction, s *sqlast.Update) (*Result, error) {
	tbl, err := e.tableOrErr(s.Table)
	if err != nil {
		return nil, err
	}
	acc := table.FromWriteTxn(txn)
	rows, err := matchWhere(acc, tbl, s.Where)
	if err != nil {
		return nil, err
	}

	affected := 0
	for _, oldRow := range rows {
		newRow := append(sequence.Row(nil), oldRow...)
		for i, col := range s.Columns {
			idx, ok := tbl.ColumnIndex(col)
			if !ok {
				return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: no column %q", s.Table, col)
			}
			v := s.Values[i]
			if s.PlusColumn[i] != "" {
				plusIdx, ok := tbl.ColumnIndex(s.PlusColumn[i])
				if !ok {
					return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: no column %q", s.Table, s.PlusColumn[i])
				}
				v = sequence.IntValue(v.Int + oldRow[plusIdx].Int)
			}
			newRow[idx] = v
		}

		if _, err := plan.Update(txn, e.Graph, e.Tables, tbl, oldRow, newRow); err != nil {
			return nil, err
		}
		e.Views.Update(s.Table, oldRow, newRow)
		affected++
	}
	touch.Touch(s.Table)
	return &Result{Count: affected}, nil
}

// execDelete resolves every row matching s.Where by primary key and runs
// the delete plan per §4.6 once per distinct PK.
func (e *Engine) execDelete(txn kv.WriteTxn, touch *compliance.Transaction, s *sqlast.Delete) (*Result, error) {
	tbl, err := e.tableOrErr(s.Table)
	if err != nil {
		return nil, err
	}
	acc := table.FromWriteTxn(txn)
	rows, err := matchWhere(acc, tbl, s.Where)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	count := 0
	for _, row := range rows {
		pk := row[tbl.PKColumn]
		if seen[pk.String()] {
			continue
		}
		seen[pk.String()] = true

		res, err := plan.Delete(txn, e.Graph, e.Tables, tbl, pk)
		if err != nil {
			return nil, err
		}
		count += res.Ops
		for range res.Shards {
			e.Views.Push(s.Table, row, false)
		}
	}
	touch.Touch(s.Table)
	return &Result{Count: count}, nil
}

// execSelect resolves the WHERE clause's equality constraints against the
// index-selection algorithm, then applies any remaining (non-equality)
// predicate and projection in memory — §4.7's "SELECT never routes to
// views at the storage layer" contract.
func (e *Engine) execSelect(txn kv.WriteTxn, s *sqlast.Select) (*Result, error) {
	tbl, err := e.tableOrErr(s.Table)
	if err != nil {
		return nil, err
	}
	acc := table.FromWriteTxn(txn)

	constrained := map[int]sequence.Value{}
	for _, cond := range s.Where {
		if cond.Op != sqlast.OpEqual {
			continue
		}
		idx, ok := tbl.ColumnIndex(cond.Column)
		if !ok {
			return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: no column %q", s.Table, cond.Column)
		}
		constrained[idx] = cond.Value
	}
	rows, err := plan.Select(acc, tbl, constrained)
	if err != nil {
		return nil, err
	}
	rows, err = filterWhere(tbl, rows, s.Where)
	if err != nil {
		return nil, err
	}
	rows = project(tbl, rows, s.Columns)
	return &Result{Count: len(rows), Rows: rows}, nil
}

func matchWhere(acc table.Accessor, tbl *table.Table, where []sqlast.Condition) ([]sequence.Row, error) {
	constrained := map[int]sequence.Value{}
	for _, cond := range where {
		if cond.Op != sqlast.OpEqual {
			continue
		}
		idx, ok := tbl.ColumnIndex(cond.Column)
		if !ok {
			return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: no column %q", tbl.Name, cond.Column)
		}
		constrained[idx] = cond.Value
	}
	rows, err := plan.Select(acc, tbl, constrained)
	if err != nil {
		return nil, err
	}
	return filterWhere(tbl, rows, where)
}

func filterWhere(tbl *table.Table, rows []sequence.Row, where []sqlast.Condition) ([]sequence.Row, error) {
	if len(where) == 0 {
		return rows, nil
	}
	var out []sequence.Row
	for _, row := range rows {
		ok, err := matchesConditions(tbl, row, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func matchesConditions(tbl *table.Table, row sequence.Row, where []sqlast.Condition) (bool, error) {
	for _, cond := range where {
		idx, ok := tbl.ColumnIndex(cond.Column)
		if !ok {
			return false, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: no column %q", tbl.Name, cond.Column)
		}
		if !compare(row[idx], cond.Op, cond.Value) {
			return false, nil
		}
	}
	return true, nil
}

func compare(a sequence.Value, op sqlast.ComparisonOp, b sequence.Value) bool {
	switch op {
	case sqlast.OpEqual:
		return valuesEqual(a, b)
	case sqlast.OpNotEqual:
		return !valuesEqual(a, b)
	case sqlast.OpLess:
		return a.Int < b.Int
	case sqlast.OpLessEqual:
		return a.Int <= b.Int
	case sqlast.OpGreater:
		return a.Int > b.Int
	case sqlast.OpGreaterEqual:
		return a.Int >= b.Int
	default:
		return false
	}
}

func valuesEqual(a, b sequence.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case sequence.KindNull:
		return true
	case sequence.KindInt:
		return a.Int == b.Int
	case sequence.KindUint:
		return a.Uint == b.Uint
	default:
		return a.Text == b.Text
	}
}

func project(tbl *table.Table, rows []sequence.Row, columns []sqlast.ResultColumn) []sequence.Row {
	star := len(columns) == 0
	for _, c := range columns {
		if c.Star {
			star = true
		}
	}
	if star {
		return rows
	}
	out := make([]sequence.Row, len(rows))
	for i, row := range rows {
		projected := make(sequence.Row, 0, len(columns))
		for _, c := range columns {
			if c.Literal != nil {
				projected = append(projected, *c.Literal)
				continue
			}
			idx, ok := tbl.ColumnIndex(c.Column)
			if !ok {
				continue
			}
			projected = append(projected, row[idx])
		}
		out[i] = projected
	}
	return out
}
