package gdpr

import (
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/plan"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/table"
)

func deleteRowFromShard(txn kv.WriteTxn, tbl *table.Table, shardName string, row sequence.Row) error {
	for _, idx := range tbl.Indices() {
		if err := tbl.IndexDelete(txn, idx, shardName, row, true); err != nil {
			return err
		}
	}
	return tbl.Delete(txn, shardName, row[tbl.PKColumn])
}

func putAnonymized(txn kv.WriteTxn, tbl *table.Table, shardName string, oldRow, newRow sequence.Row) error {
	for _, idx := range tbl.Indices() {
		if err := tbl.IndexUpdate(txn, idx, shardName, oldRow, newRow); err != nil {
			return err
		}
	}
	return tbl.Put(txn, shardName, newRow)
}

// intersectAnonColumns returns the columns every rule in rules agrees to
// NULL — §4.7's "the set of NULL-ified columns is the intersection across
// paths that would fire."
func intersectAnonColumns(rules []sqlast.OnRule) []string {
	if len(rules) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, r := range rules {
		for _, c := range r.AnonColumns {
			counts[c]++
		}
	}
	var out []string
	for c, n := range counts {
		if n == len(rules) {
			out = append(out, c)
		}
	}
	return out
}

// Forget implements §4.8's GDPR FORGET plan. For each table reached by some
// ownership or accessor chain ending at (kind,id), every row in that shard
// is evaluated against the table's ON DEL rules: no rule means a plain
// shard-local delete (the row simply isn't owned here any more); a declared
// DELETE_ROW means the row is gone everywhere (every shard the PK index
// still finds it in, via internal/plan's full delete); a declared ANON
// means the row survives with the intersection of firing rules' columns
// NULLed in this shard only. The subject's own row is always deleted last.
//
// Per §4.8's counting rule, the returned count increments once per owning
// edge that fires on a row, not once per physical row: a row reached by two
// distinct owning columns both pointing at the forgotten subject (§8
// scenario 1/2's two-owner fanout) counts twice even though only one
// physical write removes it. For two msg rows where only one column matches
// on the first and both columns match on the second, that is 1 + 2 = 3
// table ops plus 1 for the subject row, for a total count of 4.
func (e *Engine) Forget(txn kv.WriteTxn, kind string, id sequence.Value) (int, error) {
	subjectTbl, err := e.tableOrErr(kind)
	if err != nil {
		return 0, err
	}
	acc := table.FromWriteTxn(txn)
	shardName := shard.New(kind, id.String()).String()
	ops := 0

	for name, tbl := range e.sql.Tables {
		if name == kind {
			continue
		}
		chains := e.chainsEndingAt(name, kind)
		if len(chains) == 0 {
			continue
		}

		var owning, accessing []shard.Chain
		for _, c := range chains {
			if c.AccessOnly() {
				accessing = append(accessing, c)
			} else {
				owning = append(owning, c)
			}
		}

		for _, link := range accessing {
			n, err := e.forgetAccessorEdge(txn, tbl, shardName, link, id)
			if err != nil {
				return ops, err
			}
			ops += n
		}

		if len(owning) > 0 {
			onDel := rulesByTrigger(e.sql.OnRules(name), sqlast.OnDel)
			rows, err := tbl.GetShard(acc, shardName)
			if err != nil {
				return ops, err
			}
			for _, row := range rows {
				n, err := e.applyForgetRow(txn, tbl, shardName, row, owning, onDel, id)
				if err != nil {
					return ops, err
				}
				ops += n
			}
		}

		n, err := e.cascadePlainFK(txn, tbl, shardName)
		if err != nil {
			return ops, err
		}
		ops += n
	}

	subjectRows, err := subjectTbl.GetShard(acc, shardName)
	if err != nil {
		return ops, err
	}
	for _, row := range subjectRows {
		if err := deleteRowFromShard(txn, subjectTbl, shardName, row); err != nil {
			return ops, err
		}
		ops++
	}
	return ops, nil
}

// forgetAccessorEdge handles an ACCESSOR-only chain link: §4.6 says rows it
// reaches are "not deleted but their FK to the subject is anonymized" — the
// row stays, and its copy in shardName has the accessor column NULLed so it
// no longer names the forgotten subject. Copies of the same row in other
// shards are not changed here.
func (e *Engine) forgetAccessorEdge(txn kv.WriteTxn, tbl *table.Table, shardName string, link shard.Chain, id sequence.Value) (int, error) {
	if len(link) == 0 {
		return 0, nil
	}
	acc := table.FromWriteTxn(txn)
	rows, err := tbl.GetShard(acc, shardName)
	if err != nil {
		return 0, err
	}
	idx, ok := tbl.ColumnIndex(link[0].DownColumn)
	if !ok {
		return 0, nil
	}
	ops := 0
	for _, row := range rows {
		if row[idx].IsNull() || !valuesEqual(row[idx], id) {
			continue
		}
		newRow := nullColumns(tbl, row, []string{link[0].DownColumn})
		if rowUnchanged(row, newRow) {
			continue
		}
		if err := putAnonymized(txn, tbl, shardName, row, newRow); err != nil {
			return ops, err
		}
		ops++
	}
	return ops, nil
}

// findOnDelRule returns the single ON DEL rule declared directly on column,
// if any — a row can carry at most one per owning column.
func findOnDelRule(rules []sqlast.OnRule, column string) *sqlast.OnRule {
	for i := range rules {
		if !rules[i].IsInverse() && rules[i].Column == column {
			return &rules[i]
		}
	}
	return nil
}

// decideForgetRow walks every owning chain independently and asks whether
// its down-column actually equals id on this row — a column-level question,
// not a row-level one, since the same physical row can be reached through
// two distinct owning columns that both happen to name the same subject
// (§8 scenario 1/2's two-owner fanout). fireCount is the number of such
// firing edges; this is what the return value counts, not the number of
// physical writes that follow.
func decideForgetRow(owning []shard.Chain, onDel []sqlast.OnRule, tbl *table.Table, row sequence.Row, id sequence.Value) (fireCount int, anonRules []sqlast.OnRule, explicitDelete bool) {
	for _, link := range owning {
		if len(link) == 0 {
			continue
		}
		col := link[0].DownColumn
		idx, ok := tbl.ColumnIndex(col)
		if !ok || row[idx].IsNull() || !valuesEqual(row[idx], id) {
			continue
		}
		fireCount++
		rule := findOnDelRule(onDel, col)
		switch {
		case rule == nil:
			// no rule: shard-local delete is this edge's default.
		case rule.Action == sqlast.ActionDeleteRow:
			explicitDelete = true
		default:
			anonRules = append(anonRules, *rule)
		}
	}
	return fireCount, anonRules, explicitDelete
}

// applyForgetRow decides row's fate from every owning column that fires on
// it and performs exactly the write that decision implies once, returning
// the number of firing edges (not the number of physical writes) per §4.8's
// counting rule. §4.7's priority applies when edges disagree: an ANON rule
// on any firing edge preserves the row (with the intersection of firing
// ANON rules' columns nulled) even if another firing edge would otherwise
// delete it outright.
func (e *Engine) applyForgetRow(txn kv.WriteTxn, tbl *table.Table, shardName string, row sequence.Row, owning []shard.Chain, onDel []sqlast.OnRule, id sequence.Value) (int, error) {
	fireCount, anonRules, explicitDelete := decideForgetRow(owning, onDel, tbl, row, id)
	if fireCount == 0 {
		return 0, nil
	}

	if len(anonRules) > 0 {
		cols := intersectAnonColumns(anonRules)
		newRow := nullColumns(tbl, row, cols)
		if !rowUnchanged(row, newRow) {
			if err := putAnonymized(txn, tbl, shardName, row, newRow); err != nil {
				return 0, err
			}
		}
		return fireCount, nil
	}

	if explicitDelete {
		if _, err := plan.Delete(txn, e.sql.Graph, e.sql.Tables, tbl, row[tbl.PKColumn]); err != nil {
			return 0, err
		}
		return fireCount, nil
	}

	if err := deleteRowFromShard(txn, tbl, shardName, row); err != nil {
		return 0, err
	}
	return fireCount, nil
}

// cascadePlainFK repeatedly scans tbl's rows in shardName for a non-sharding
// REFERENCES column that has gone dangling (its target row no longer exists
// in this same shard) and an ON DEL rule attached to it, applying that rule
// until a pass finds nothing left to do. This is what lets a self-
// referencing FK (§8's comment-thread example) clean up after an owner-edge
// delete without any special-casing: in that worked example the owning
// edge's own delete already removes every row in the chain in one pass, so
// this loop typically runs zero extra iterations — it exists for schemas
// where the only reason a row becomes unreachable is a plain FK, not an
// ownership edge.
func (e *Engine) cascadePlainFK(txn kv.WriteTxn, tbl *table.Table, shardName string) (int, error) {
	refs := e.sql.PlainFKs(tbl.Name)
	if len(refs) == 0 {
		return 0, nil
	}
	onDel := rulesByTrigger(e.sql.OnRules(tbl.Name), sqlast.OnDel)

	ops := 0
	for {
		acc := table.FromWriteTxn(txn)
		rows, err := tbl.GetShard(acc, shardName)
		if err != nil {
			return ops, err
		}
		alive := map[string]bool{}
		for _, row := range rows {
			alive[row[tbl.PKColumn].String()] = true
		}

		progressed := false
		for _, ref := range refs {
			if ref.RefTable != tbl.Name {
				continue // only same-table self-references cascade here
			}
			rule := findOnDelRule(onDel, ref.Column)
			if rule == nil {
				continue
			}
			colIdx, ok := tbl.ColumnIndex(ref.Column)
			if !ok {
				continue
			}

			for _, row := range rows {
				fk := row[colIdx]
				if fk.IsNull() || alive[fk.String()] {
					continue
				}
				switch rule.Action {
				case sqlast.ActionDeleteRow:
					if err := deleteRowFromShard(txn, tbl, shardName, row); err != nil {
						return ops, err
					}
				default:
					newRow := nullColumns(tbl, row, []string{ref.Column})
					if rowUnchanged(row, newRow) {
						continue
					}
					if err := putAnonymized(txn, tbl, shardName, row, newRow); err != nil {
						return ops, err
					}
				}
				ops++
				progressed = true
			}
		}
		if !progressed {
			return ops, nil
		}
	}
}
