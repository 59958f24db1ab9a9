// Package table implements the per-table row and index storage of §4.4:
// one KV column family per table for rows, one per index, a mandatory PK
// index, and the index-selection algorithm that picks among them. Grounded
// on internal/storage/sqlite/metadata_index.go's "one KV-shaped bucket per
// index, keyed by indexed column(s)" mapping, translated down from SQL onto
// the raw kv.Store of this tree.
package table

import (
	"fmt"

	"github.com/k9db/k9db/internal/crypto"
	"github.com/k9db/k9db/internal/sequence"
)

// Column describes one declared column of a table.
type Column struct {
	Name     string
	Kind     sequence.Kind
	Nullable bool
}

// Table is (name, schema, pk_column_index, unique_columns, indices,
// column_family_handle) per §3. It owns one row column family plus one
// column family per index, the first of which is always the implicit PK
// index created in New.
type Table struct {
	Name          string
	Columns       []Column
	PKColumn      int
	UniqueColumns []int

	RowsCF string

	indices []*Index
	crypto  crypto.Manager
}

// New constructs a table with its mandatory PK index already attached.
// uniqueColumns lists column indices (other than PKColumn) with a
// uniqueness constraint; New attaches a unique single-column index for
// each.
func New(name string, columns []Column, pkColumn int, uniqueColumns []int, mgr crypto.Manager) (*Table, error) {
	if pkColumn < 0 || pkColumn >= len(columns) {
		return nil, fmt.Errorf("table %s: pk column %d out of range", name, pkColumn)
	}
	t := &Table{
		Name:          name,
		Columns:       columns,
		PKColumn:      pkColumn,
		UniqueColumns: uniqueColumns,
		RowsCF:        "t$" + name,
		crypto:        mgr,
	}
	t.indices = append(t.indices, &Index{
		Name:    name + "$pk",
		Table:   t,
		Columns: []int{pkColumn},
		Unique:  true,
		CF:      "i$" + name + "$pk",
	})
	for _, col := range uniqueColumns {
		if _, err := t.AddIndex(fmt.Sprintf("%s$u%d", name, col), []int{col}, true); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddIndex attaches a new secondary index over the given column indices, in
// prefix order. CREATE INDEX backfill (§5's exclusive-lock-then-backfill
// rule) is the sqlengine layer's responsibility, not this constructor's.
func (t *Table) AddIndex(name string, columns []int, unique bool) (*Index, error) {
	for _, c := range columns {
		if c < 0 || c >= len(t.Columns) {
			return nil, fmt.Errorf("table %s: index %s: column %d out of range", t.Name, name, c)
		}
	}
	idx := &Index{
		Name:    name,
		Table:   t,
		Columns: append([]int(nil), columns...),
		Unique:  unique,
		CF:      "i$" + t.Name + "$" + name,
	}
	t.indices = append(t.indices, idx)
	return idx, nil
}

// Indices returns every index attached to t, PK index first.
func (t *Table) Indices() []*Index { return t.indices }

// PKIndex returns the mandatory implicit PK index.
func (t *Table) PKIndex() *Index { return t.indices[0] }

// ColumnFamilies returns every column family this table owns: its rows CF
// followed by one per index, for bulk CreateColumnFamily calls at CREATE
// TABLE time.
func (t *Table) ColumnFamilies() []string {
	cfs := make([]string, 0, len(t.indices)+1)
	cfs = append(cfs, t.RowsCF)
	for _, idx := range t.indices {
		cfs = append(cfs, idx.CF)
	}
	return cfs
}

func (t *Table) pkValue(row sequence.Row) sequence.Value {
	return row[t.PKColumn]
}

// ColumnIndex returns the position of the named column, if any.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}
