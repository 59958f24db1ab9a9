package sqlengine

import (
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
)

// ExecuteDDL is Execute's counterpart for CREATE statements, which need the
// original SQL text for catalog persistence (§4.12's "persist the original
// DDL verbatim") rather than a reconstruction from the parsed AST.
func (e *Engine) ExecuteDDL(txn kv.WriteTxn, store kv.Store, rawSQL string, stmt sqlast.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *sqlast.CreateTable:
		return e.createTable(txn, store, rawSQL, s, true)
	case *sqlast.CreateIndex:
		return e.createIndex(txn, rawSQL, s, true)
	default:
		return nil, sqlerr.New(sqlerr.ErrInvalidSQL, "sqlengine: ExecuteDDL called with non-DDL statement %T", stmt)
	}
}

// ReplayDDL rebuilds in-memory state (shard.Graph, plan.Map, onRules,
// plainFK) from a DDL statement already persisted in internal/catalog,
// without re-appending it — internal/dbctx.Open calls this once per entry
// catalog.All returns, per §4.12's "Initialize replays them in order."
func (e *Engine) ReplayDDL(txn kv.WriteTxn, store kv.Store, rawSQL string, stmt sqlast.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *sqlast.CreateTable:
		return e.createTable(txn, store, rawSQL, s, false)
	case *sqlast.CreateIndex:
		return e.createIndex(txn, rawSQL, s, false)
	default:
		return nil, sqlerr.New(sqlerr.ErrInvalidSQL, "sqlengine: ReplayDDL called with non-DDL statement %T", stmt)
	}
}

func annotationKind(k sqlast.AnnotationKind) (shard.AnnotationKind, bool) {
	switch k {
	case sqlast.AnnotationOwnedBy:
		return shard.OwnedBy, true
	case sqlast.AnnotationOwns:
		return shard.Owns, true
	case sqlast.AnnotationAccessedBy:
		return shard.AccessedBy, true
	case sqlast.AnnotationAccesses:
		return shard.Accesses, true
	default:
		return 0, false
	}
}

func (e *Engine) createTable(txn kv.WriteTxn, store kv.Store, rawSQL string, ct *sqlast.CreateTable, persist bool) (*Result, error) {
	columns := make([]table.Column, len(ct.Columns))
	pkColumn := -1
	var uniqueColumns []int
	var annotations []shard.Annotation
	var fkColumns []int
	var plainFKs []PlainFKRef

	for i, c := range ct.Columns {
		columns[i] = table.Column{Name: c.Name, Kind: c.Kind, Nullable: c.Nullable}
		if c.PrimaryKey {
			pkColumn = i
		} else if c.Unique {
			uniqueColumns = append(uniqueColumns, i)
		}
		if kind, ok := annotationKind(c.Annotation); ok {
			annotations = append(annotations, shard.Annotation{
				Kind:      kind,
				Column:    c.Name,
				RefTable:  c.RefTable,
				RefColumn: c.RefColumn,
				Nullable:  c.Nullable,
			})
			fkColumns = append(fkColumns, i)
		} else if c.PlainFK {
			fkColumns = append(fkColumns, i)
			plainFKs = append(plainFKs, PlainFKRef{Column: c.Name, RefTable: c.RefTable, RefColumn: c.RefColumn})
		}
	}
	if pkColumn < 0 {
		return nil, sqlerr.New(sqlerr.ErrInvalidSQL, "table %s: no PRIMARY KEY column declared", ct.Name)
	}

	tbl, err := table.New(ct.Name, columns, pkColumn, uniqueColumns, e.CryptoFn())
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.ErrInvalidSQL, err, "table %s", ct.Name)
	}
	for _, c := range fkColumns {
		if c == pkColumn {
			continue
		}
		already := false
		for _, u := range uniqueColumns {
			if u == c {
				already = true
			}
		}
		if already {
			continue
		}
		if _, err := tbl.AddIndex(ct.Columns[c].Name, []int{c}, false); err != nil {
			return nil, err
		}
	}

	if err := e.Graph.AddTable(ct.Name, ct.DataSubject, annotations); err != nil {
		return nil, sqlerr.Wrap(sqlerr.ErrSchemaViolation, err, "table %s", ct.Name)
	}
	for _, cf := range tbl.ColumnFamilies() {
		if err := store.CreateColumnFamily(cf); err != nil {
			return nil, err
		}
	}
	e.Tables[ct.Name] = tbl
	e.onRules[ct.Name] = ct.OnRules
	e.plainFK[ct.Name] = plainFKs

	if persist {
		if _, err := e.Catalog.Append(txn, rawSQL); err != nil {
			return nil, err
		}
	}
	return &Result{Count: 0}, nil
}

// createIndex allocates ci's column family and backfills it from every row
// already stored across every shard, per §5's "exclusive-lock-then-backfill"
// rule — the backfill here runs inside the same write transaction as the
// DDL itself, which is a stronger guarantee than §5's minimum (no window
// where the index exists but is only partially populated).
func (e *Engine) createIndex(txn kv.WriteTxn, rawSQL string, ci *sqlast.CreateIndex, persist bool) (*Result, error) {
	tbl, err := e.tableOrErr(ci.Table)
	if err != nil {
		return nil, err
	}
	cols := make([]int, len(ci.Columns))
	for i, name := range ci.Columns {
		idx, ok := tbl.ColumnIndex(name)
		if !ok {
			return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: no column %q", ci.Table, name)
		}
		cols[i] = idx
	}
	idx, err := tbl.AddIndex(ci.Name, cols, ci.Unique)
	if err != nil {
		return nil, err
	}

	acc := table.FromWriteTxn(txn)
	pairs, err := tbl.GetAllWithShard(acc)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if err := tbl.IndexAdd(txn, idx, p.Shard, p.Row); err != nil {
			return nil, err
		}
	}

	if persist {
		if _, err := e.Catalog.Append(txn, rawSQL); err != nil {
			return nil, err
		}
	}
	return &Result{Count: len(pairs)}, nil
}
