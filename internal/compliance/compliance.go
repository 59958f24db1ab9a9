// Package compliance implements the per-session compliance transaction of
// §4.10: a watchdog that refuses to let a SQL session commit while some row
// of a table that declared ownership is still sitting, unowned, in the
// default shard. Grounded on internal/hooks' session-scoped commit hooks
// (validates issue state before allowing a transition to persist) —
// generalized from "validate this one issue" to "validate every table this
// session touched."
package compliance

import (
	"strings"

	"github.com/k9db/k9db/internal/idgen"
	"github.com/k9db/k9db/internal/plan"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
)

// Transaction tracks which owned tables this session has written to, so
// Commit only has to rescan default for tables actually touched rather than
// the whole schema.
type Transaction struct {
	graph   *shard.Graph
	tables  plan.Tables
	touched map[string]bool
}

// New starts a fresh compliance transaction bound to graph and tables.
func New(graph *shard.Graph, tables plan.Tables) *Transaction {
	return &Transaction{graph: graph, tables: tables, touched: make(map[string]bool)}
}

// Touch records that tableName was written to during this session. The SQL
// engine's INSERT/REPLACE, UPDATE and DELETE handlers each call it after a
// successful statement.
func (tx *Transaction) Touch(tableName string) {
	tx.touched[tableName] = true
}

// Commit rescans the default shard for every touched table that declared an
// ownership chain (excluding tables whose chains are all ACCESSED_BY/
// ACCESSES, which confer no ownership obligation) and fails with
// sqlerr.ErrCompliance if any of that table's rows still sit there.
//
// The "at the start of the session" qualifier is not tracked separately
// here: a row dangling in default at commit time is a violation
// regardless of which statement put it there, which is the simpler and
// strictly stronger check (it catches everything the narrower,
// session-start-relative version would, plus pre-existing orphans a buggy
// statement failed to clean up).
func (tx *Transaction) Commit(acc table.Accessor) error {
	for tableName := range tx.touched {
		chains := tx.graph.ChainsFrom(tableName)
		owned := false
		for _, c := range chains {
			if !c.AccessOnly() {
				owned = true
				break
			}
		}
		if !owned {
			continue
		}
		tbl, ok := tx.tables.Table(tableName)
		if !ok {
			continue
		}
		rows, err := tbl.GetShard(acc, shard.Default().String())
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			markers := make([]string, len(rows))
			for i, row := range rows {
				markers[i] = idgen.DanglingMarker(tableName, row[tbl.PKColumn].Encode())
			}
			return sqlerr.New(sqlerr.ErrCompliance, "table %s has %d row(s) orphaned in the default shard (markers: %s)", tableName, len(rows), strings.Join(markers, ", "))
		}
	}
	return nil
}

// Discard always succeeds — a rolled-back session never commits anything,
// compliant or not.
func (tx *Transaction) Discard() {}
