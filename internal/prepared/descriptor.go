package prepared

import (
	"fmt"
	"regexp"

	"github.com/k9db/k9db/internal/plan"
	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/table"
)

// Descriptor is the canonical, type-resolved form of a prepared statement:
// one entry per "?" placeholder, naming the table/column/operator it binds
// to and the column kind an incoming argument must be parsed as.
type Descriptor struct {
	Canonical string
	ArgTables []string
	ArgNames  []string
	ArgOps    []string
	ArgTypes  []sequence.Kind
	ViewName  string // non-empty iff this statement is served by a view
}

var fromTableRe = regexp.MustCompile(`(?i)(?:\sFROM|\bUPDATE)\s+([A-Za-z0-9_]+)\b`)
var paramRe = regexp.MustCompile(`(?:([A-Za-z0-9_]+)\.)?([A-Za-z0-9_]+)\s*(=|<=|>=|<|>)\s*\?`)

// FromTables fills in arg_types by resolving each "col op ?" parameter
// against defaultTable's schema (falling back to a qualified "table.col"
// reference if the parameter names one explicitly), per §4.9.
func FromTables(canonical string, tables plan.Tables) (*Descriptor, error) {
	defaultTable := ""
	if m := fromTableRe.FindStringSubmatch(canonical); m != nil {
		defaultTable = m[1]
	}

	d := &Descriptor{Canonical: canonical}
	for _, m := range paramRe.FindAllStringSubmatch(canonical, -1) {
		tableName, col, op := m[1], m[2], m[3]
		if tableName == "" {
			tableName = defaultTable
		}
		tbl, ok := tables.Table(tableName)
		if !ok {
			return nil, fmt.Errorf("prepared: unknown table %q for parameter %q", tableName, col)
		}
		idx, ok := tbl.ColumnIndex(col)
		if !ok {
			return nil, fmt.Errorf("prepared: table %s has no column %q", tableName, col)
		}
		d.ArgTables = append(d.ArgTables, tableName)
		d.ArgNames = append(d.ArgNames, col)
		d.ArgOps = append(d.ArgOps, op)
		d.ArgTypes = append(d.ArgTypes, tbl.Columns[idx].Kind)
	}
	return d, nil
}

// FromFlow fills in arg_types the same way as FromTables, but resolves each
// parameter's type against a view's own output schema instead of a stored
// table's, and tags the resulting descriptor with viewName so the SQL
// engine routes it to the view bridge (§4.11) rather than primary storage.
func FromFlow(viewName string, schema []table.Column, canonical string) (*Descriptor, error) {
	lookup := make(map[string]sequence.Kind, len(schema))
	for _, c := range schema {
		lookup[c.Name] = c.Kind
	}

	d := &Descriptor{Canonical: canonical, ViewName: viewName}
	for _, m := range paramRe.FindAllStringSubmatch(canonical, -1) {
		col, op := m[2], m[3]
		kind, ok := lookup[col]
		if !ok {
			return nil, fmt.Errorf("prepared: view %s has no output column %q", viewName, col)
		}
		d.ArgTables = append(d.ArgTables, viewName)
		d.ArgNames = append(d.ArgNames, col)
		d.ArgOps = append(d.ArgOps, op)
		d.ArgTypes = append(d.ArgTypes, kind)
	}
	return d, nil
}
