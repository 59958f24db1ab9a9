// Package sqlengine implements the statement-dispatch engine of §4.7: one
// case per sqlast.Statement variant, each running the matching internal/plan
// operation and threading its side effects into the catalog, the view
// bridge, and the enclosing session's compliance transaction.
//
// Grounded on internal/query/evaluator.go's query evaluator, which matches
// on a closed AST with a type switch rather than a visitor hierarchy — the
// same shape §9's design note calls for here, just over sqlast.Statement
// instead of a filter expression tree.
package sqlengine

import (
	"github.com/k9db/k9db/internal/catalog"
	"github.com/k9db/k9db/internal/compliance"
	"github.com/k9db/k9db/internal/crypto"
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/plan"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
	"github.com/k9db/k9db/internal/views"
)

// Result is what Execute returns for any statement: an affected/returned row
// count plus, for SELECT, the rows themselves.
type Result struct {
	Count int
	Rows  []sequence.Row
}

// Engine ties together every component a SQL session needs to run a
// statement: the shard graph and table registry from the catalog replay,
// the KV store for raw access, the view bridge for delta propagation, and a
// crypto manager factory for CREATE TABLE.
type Engine struct {
	Graph    *shard.Graph
	Tables   plan.Map
	Catalog  *catalog.Catalog
	Views    *views.Sink
	CryptoFn func() crypto.Manager

	onRules map[string][]sqlast.OnRule
	plainFK map[string][]PlainFKRef
}

// PlainFKRef is a REFERENCES constraint that carries no sharding annotation
// (sqlast.ColumnDef.PlainFK) — it plays no part in shard placement, but
// internal/gdpr still needs it to cascade self-referencing DELETE_ROW rules
// (§8's comment-thread example) since those aren't ownership edges at all.
type PlainFKRef struct {
	Column    string
	RefTable  string
	RefColumn string
}

// New builds an engine. cryptoFn is called once per CREATE TABLE to produce
// that table's crypto.Manager (crypto.NewNoopManager when encryption is
// off, crypto.NewAEADManager when it is on, per §9's encryption-off mode).
func New(graph *shard.Graph, cat *catalog.Catalog, sink *views.Sink, cryptoFn func() crypto.Manager) *Engine {
	return &Engine{
		Graph:    graph,
		Tables:   plan.Map{},
		Catalog:  cat,
		Views:    sink,
		CryptoFn: cryptoFn,
		onRules:  make(map[string][]sqlast.OnRule),
		plainFK:  make(map[string][]PlainFKRef),
	}
}

// OnRules returns the ON GET/ON DEL rules declared on tableName's CREATE
// TABLE, for internal/gdpr's traversal.
func (e *Engine) OnRules(tableName string) []sqlast.OnRule { return e.onRules[tableName] }

// PlainFKs returns tableName's non-sharding REFERENCES columns, for
// internal/gdpr's same-table cascade (a self-referencing FK has no shard
// descriptor at all, so it never appears in e.Graph).
func (e *Engine) PlainFKs(tableName string) []PlainFKRef { return e.plainFK[tableName] }

// Execute runs stmt inside txn, recording any row-level side effect in
// touch (the session's compliance transaction) and store (for allocating
// column families CREATE needs). Every statement is all-or-nothing: a
// returned error means no partial write survives since every write in this
// call happened inside the caller's single KV transaction.
func (e *Engine) Execute(txn kv.WriteTxn, store kv.Store, touch *compliance.Transaction, stmt sqlast.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *sqlast.CreateTable, *sqlast.CreateIndex:
		return nil, sqlerr.New(sqlerr.ErrInvalidSQL, "sqlengine: %T must go through ExecuteDDL (needs the raw SQL text for catalog persistence)", stmt)
	case *sqlast.Insert:
		return e.execInsert(txn, touch, s)
	case *sqlast.Update:
		return e.execUpdate(txn, touch, s)
	case *sqlast.Delete:
		return e.execDelete(txn, touch, s)
	case *sqlast.Select:
		return e.execSelect(txn, s)
	default:
		return nil, sqlerr.New(sqlerr.ErrInvalidSQL, "sqlengine: unsupported statement %T", stmt)
	}
}

func (e *Engine) tableOrErr(name string) (*table.Table, error) {
	tbl, ok := e.Tables.Table(name)
	if !ok {
		return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "sqlengine: unknown table %q", name)
	}
	return tbl, nil
}
