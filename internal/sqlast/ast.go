// Package sqlast defines the closed set of statement types the engine
// understands and a hand-rolled parser for them (internal/sqlast/hacky),
// grounded on original_source/k9db/sqlast/hacky.cc's "parse a small fixed
// grammar without a parser generator" approach — translated from
// pointer-and-length C scanning into a conventional Go lexer + recursive
// descent parser, since that is how this corpus's own parsers are built
// (there is no ANTLR-equivalent dependency anywhere in the pack).
package sqlast

import "github.com/k9db/k9db/internal/sequence"

// Statement is the closed sum of every statement kind the engine accepts.
// Callers dispatch on the concrete type with a type switch (sqlengine's
// Execute), never a visitor interface — see §9's design note on avoiding a
// visitor hierarchy for a fixed, small set of cases.
type Statement interface{ statement() }

// AnnotationKind tags one FK-adjacent sharding annotation.
type AnnotationKind int

const (
	AnnotationNone AnnotationKind = iota
	AnnotationOwnedBy
	AnnotationOwns
	AnnotationAccessedBy
	AnnotationAccesses
)

// ColumnDef is one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name       string
	Kind       sequence.Kind
	PrimaryKey bool
	Unique     bool
	Nullable   bool

	// Annotation is set when this column carries a sharding FK annotation
	// (OWNED_BY/OWNS/ACCESSED_BY/ACCESSES) or a plain REFERENCES.
	Annotation    AnnotationKind
	RefTable      string
	RefColumn     string
	PlainFK       bool // REFERENCES with no sharding annotation
}

// OnRuleTrigger selects whether an anonymization rule fires on GDPR GET or
// GDPR FORGET.
type OnRuleTrigger int

const (
	OnGet OnRuleTrigger = iota
	OnDel
)

// OnRuleAction is ANON(cols) or DELETE_ROW.
type OnRuleAction int

const (
	ActionAnon OnRuleAction = iota
	ActionDeleteRow
)

// OnRule is one `, ON GET|DEL <col> ANON(...)|DELETE_ROW` table-level
// clause. Column may instead name an inverse edge as
// <related_table>(<related_col>), recorded in RelatedTable/RelatedColumn.
type OnRule struct {
	Trigger       OnRuleTrigger
	Column        string
	RelatedTable  string
	RelatedColumn string
	Action        OnRuleAction
	AnonColumns   []string
}

// IsInverse reports whether this rule is attached to an inverse edge
// (<related_table>(<related_col>)) rather than a column of the declaring
// table directly.
func (r OnRule) IsInverse() bool { return r.RelatedTable != "" }

// CreateTable is `CREATE [DATA_SUBJECT] TABLE name (columns...) [, ON
// GET/DEL rules]`.
type CreateTable struct {
	Name         string
	DataSubject  bool
	Columns      []ColumnDef
	OnRules      []OnRule
}

func (*CreateTable) statement() {}

// CreateIndex is `CREATE INDEX name ON table (columns...)`.
type CreateIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

func (*CreateIndex) statement() {}

// Insert is `INSERT INTO table (cols...) VALUES (vals...)`; Replace is the
// same statement with the REPLACE keyword in place of INSERT.
type Insert struct {
	Table   string
	Columns []string // empty means "all columns in declared order"
	Values  []sequence.Value
	Replace bool
}

func (*Insert) statement() {}

// ComparisonOp is a WHERE-clause column/value relational operator.
type ComparisonOp int

const (
	OpEqual ComparisonOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

// Condition is one `<column> <op> <value>` predicate; multiple conditions
// combine with implicit AND, matching the hacky grammar's single-clause
// WHERE support generalized to a conjunction of equalities/inequalities.
type Condition struct {
	Column string
	Op     ComparisonOp
	Value  sequence.Value
}

// Update is `UPDATE table SET col = val, ... WHERE conditions`.
type Update struct {
	Table      string
	Columns    []string
	Values     []sequence.Value
	// PlusColumn, when non-empty at index i, means Values[i] is added to
	// the column's current value rather than replacing it (the `+ col`
	// grammar of hacky.cc's HackyUpdate).
	PlusColumn []string
	Where      []Condition
}

func (*Update) statement() {}

// Delete is `DELETE FROM table WHERE conditions`.
type Delete struct {
	Table string
	Where []Condition
}

func (*Delete) statement() {}

// ResultColumn is one projected column of a SELECT: either a column name,
// `*`, or (rare in practice but legal per hacky's grammar) a literal value.
type ResultColumn struct {
	Star    bool
	Column  string
	Literal *sequence.Value
}

// Select is `SELECT cols FROM table WHERE conditions`.
type Select struct {
	Table   string
	Columns []ResultColumn
	Where   []Condition
}

func (*Select) statement() {}

// GDPROperation selects GET or FORGET.
type GDPROperation int

const (
	GDPRGet GDPROperation = iota
	GDPRForget
)

// GDPRStatement is `GDPR (GET|FORGET) <shard_kind> <id>`.
type GDPRStatement struct {
	Operation GDPROperation
	ShardKind string
	SubjectID sequence.Value
}

func (*GDPRStatement) statement() {}
