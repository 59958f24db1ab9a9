// Package gdpr implements §4.8's GDPR GET / FORGET engine: it reuses the
// fact that every row sharing a subject's shard already sits under that
// shard's prefix in every table it was copied into (§4.6's insert plan), so
// "find everything reachable from (kind,id)" is just "ask every table that
// has some ownership chain ending at kind for its rows in that one shard" —
// no separate traversal structure needs to be built at CREATE TABLE time.
//
// Grounded on original_source/k9db/shards/sqlengine/gdpr_*.cc's shard-scan
// approach (enumerate the subject's shard across every sharded table) rather
// than the C++ tree's separate forward dependency index, since this tree's
// shard-prefix storage already makes that index redundant.
package gdpr

import (
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sqlengine"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
)

// Engine drives GDPR GET/FORGET against the schema and storage a
// sqlengine.Engine already knows about.
type Engine struct {
	sql *sqlengine.Engine
}

// New builds a GDPR engine over sql's table registry, shard graph, and
// ON GET/ON DEL rule declarations.
func New(sql *sqlengine.Engine) *Engine {
	return &Engine{sql: sql}
}

// chainsEndingAt returns every chain rooted at tableName whose shard kind is
// kind — the set of edges that could have placed tableName's rows into
// (kind,id)'s shard.
func (e *Engine) chainsEndingAt(tableName, kind string) []shard.Chain {
	var out []shard.Chain
	for _, c := range e.sql.Graph.ChainsFrom(tableName) {
		if c.ShardKind() == kind {
			out = append(out, c)
		}
	}
	return out
}

// firingRules returns the subset of rules (already filtered to one trigger
// kind by the caller) whose declaring column is the down-column of a chain
// ending at kind, and whose value in row actually equals id — i.e. the rule
// is live for this specific row, not just declared somewhere on the table.
// Inverse-edge rules (RelatedTable set) are skipped here, and no other
// function in this package evaluates them either.
func firingRules(chains []shard.Chain, tbl *table.Table, rules []sqlast.OnRule, row sequence.Row, id sequence.Value) []sqlast.OnRule {
	var active []sqlast.OnRule
	for _, r := range rules {
		if r.IsInverse() {
			continue
		}
		idx, ok := tbl.ColumnIndex(r.Column)
		if !ok {
			continue
		}
		onChain := false
		for _, c := range chains {
			if len(c) > 0 && c[0].DownColumn == r.Column {
				onChain = true
				break
			}
		}
		if !onChain || !valuesEqual(row[idx], id) {
			continue
		}
		active = append(active, r)
	}
	return active
}

func rulesByTrigger(rules []sqlast.OnRule, trigger sqlast.OnRuleTrigger) []sqlast.OnRule {
	var out []sqlast.OnRule
	for _, r := range rules {
		if r.Trigger == trigger {
			out = append(out, r)
		}
	}
	return out
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

func nullColumns(tbl *table.Table, row sequence.Row, cols []string) sequence.Row {
	out := append(sequence.Row(nil), row...)
	for _, name := range cols {
		if idx, ok := tbl.ColumnIndex(name); ok {
			out[idx] = sequence.NullValue()
		}
	}
	return out
}

func rowUnchanged(a, b sequence.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (e *Engine) tableOrErr(name string) (*table.Table, error) {
	tbl, ok := e.sql.Tables.Table(name)
	if !ok {
		return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "gdpr: unknown shard kind %q", name)
	}
	return tbl, nil
}
