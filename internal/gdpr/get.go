package gdpr

import (
	"sort"

	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/table"
)

// TableRows is one table's surviving rows from a GDPR GET, after ON GET
// rules have been applied.
type TableRows struct {
	Table string
	Rows  []sequence.Row
}

// Get implements §4.8's GDPR GET plan: every table with some ownership or
// accessor chain ending at kind contributes its rows from (kind,id)'s shard,
// with each row's ON GET rules applied. The subject table's own row is
// always first, since it lives in its own shard by construction (§4.6's
// insert plan places a data-subject row at shard (name, pk)); the remaining
// tables follow in a fixed, name-sorted order so the result vector is
// stable across runs rather than following map iteration order.
func (e *Engine) Get(acc table.Accessor, kind string, id sequence.Value) ([]TableRows, error) {
	subjectTbl, err := e.tableOrErr(kind)
	if err != nil {
		return nil, err
	}
	shardName := shard.New(kind, id.String()).String()

	subjectRows, err := subjectTbl.GetShard(acc, shardName)
	if err != nil {
		return nil, err
	}
	out := []TableRows{{Table: kind, Rows: subjectRows}}

	names := make([]string, 0, len(e.sql.Tables))
	for name := range e.sql.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == kind {
			continue
		}
		chains := e.chainsEndingAt(name, kind)
		if len(chains) == 0 {
			continue
		}
		tbl, _ := e.sql.Tables.Table(name)
		rows, err := tbl.GetShard(acc, shardName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		onGet := rulesByTrigger(e.sql.OnRules(name), sqlast.OnGet)
		var surviving []sequence.Row
		for _, row := range rows {
			active := firingRules(chains, tbl, onGet, row, id)
			dropped := false
			nullSet := map[string]bool{}
			for _, r := range active {
				if r.Action == sqlast.ActionDeleteRow {
					dropped = true
					break
				}
				for _, c := range r.AnonColumns {
					nullSet[c] = true
				}
			}
			if dropped {
				continue
			}
			if len(nullSet) == 0 {
				surviving = append(surviving, row)
				continue
			}
			cols := make([]string, 0, len(nullSet))
			for c := range nullSet {
				cols = append(cols, c)
			}
			surviving = append(surviving, nullColumns(tbl, row, cols))
		}
		if len(surviving) > 0 {
			out = append(out, TableRows{Table: name, Rows: surviving})
		}
	}
	return out, nil
}
