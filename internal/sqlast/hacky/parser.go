package hacky

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sequence"
)

// Parse parses one SQL statement from query, substituting args in order for
// each `?` placeholder encountered — the Go analogue of hacky.cc's
// (str, size, args) triple, with args now a slice of already-typed values
// instead of unparsed strings (internal/prepared owns turning a caller's
// driver-style args into sequence.Value before calling Parse).
func Parse(query string, args []sequence.Value) (sqlast.Statement, error) {
	p := &parser{lexer: newLexer(strings.TrimSpace(query)), args: args}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.tok().kind != tokEOF && !p.eatPunct(";") {
		return nil, fmt.Errorf("hacky: unexpected trailing input near %q", p.tok().text)
	}
	return stmt, nil
}

type parser struct {
	*lexer
	args    []sequence.Value
	argPos  int
}

func (p *parser) tok() token { return p.peek() }

func (p *parser) nextArg() (sequence.Value, error) {
	if p.argPos >= len(p.args) {
		return sequence.Value{}, fmt.Errorf("hacky: not enough arguments for placeholders")
	}
	v := p.args[p.argPos]
	p.argPos++
	return v, nil
}

func (p *parser) parseStatement() (sqlast.Statement, error) {
	switch {
	case p.isKeyword("CREATE"):
		return p.parseCreate()
	case p.isKeyword("INSERT"), p.isKeyword("REPLACE"):
		return p.parseInsert()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	case p.isKeyword("SELECT"):
		return p.parseSelect()
	case p.isKeyword("GDPR"):
		return p.parseGDPR()
	default:
		return nil, fmt.Errorf("hacky: cannot parse statement near %q", p.tok().text)
	}
}

// --- value parsing ---

func (p *parser) parseValue() (sequence.Value, error) {
	t := p.tok()
	switch t.kind {
	case tokPlaceholder:
		p.advance()
		return p.nextArg()
	case tokString:
		p.advance()
		return sequence.TextValue(t.text), nil
	case tokNumber:
		p.advance()
		if strings.Contains(t.text, ".") {
			return sequence.Value{}, fmt.Errorf("hacky: floating point literals are not supported")
		}
		// Integer literals parse as signed Int regardless of the target
		// column's declared kind; internal/sqlast/coerce.go reconciles a
		// literal against its column's Kind (Int<->Uint share a textual
		// encoding for non-negative values) once the schema is known.
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return sequence.Value{}, fmt.Errorf("hacky: bad integer literal %q: %w", t.text, err)
		}
		return sequence.IntValue(n), nil
	case tokIdent:
		if strings.EqualFold(t.text, "NULL") {
			p.advance()
			return sequence.NullValue(), nil
		}
		return sequence.Value{}, fmt.Errorf("hacky: expected value, got identifier %q", t.text)
	default:
		return sequence.Value{}, fmt.Errorf("hacky: expected value, got %q", t.text)
	}
}

// --- CREATE TABLE / CREATE INDEX ---

func (p *parser) parseCreate() (sqlast.Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if p.eatKeyword("INDEX") {
		return p.parseCreateIndexRest(false)
	}
	if p.eatKeyword("UNIQUE") {
		if err := p.expectKeyword("INDEX"); err != nil {
			return nil, err
		}
		return p.parseCreateIndexRest(true)
	}
	dataSubject := p.eatKeyword("DATA_SUBJECT")
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	ct := &sqlast.CreateTable{Name: name, DataSubject: dataSubject}
	for {
		if p.isKeyword("ON") {
			rule, err := p.parseOnRule()
			if err != nil {
				return nil, err
			}
			ct.OnRules = append(ct.OnRules, rule)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			ct.Columns = append(ct.Columns, col)
		}
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return ct, nil
}

func (p *parser) parseCreateIndexRest(unique bool) (sqlast.Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		c, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &sqlast.CreateIndex{Name: name, Table: table, Columns: cols, Unique: unique}, nil
}

func typeKind(name string) (sequence.Kind, bool) {
	switch strings.ToUpper(name) {
	case "INT", "INTEGER":
		return sequence.KindInt, true
	case "UINT", "UNSIGNED":
		return sequence.KindUint, true
	case "TEXT", "VARCHAR", "STRING":
		return sequence.KindText, true
	case "DATETIME":
		return sequence.KindDateTime, true
	default:
		return 0, false
	}
}

func annotationKeyword(kw string) (sqlast.AnnotationKind, bool) {
	switch strings.ToUpper(kw) {
	case "OWNED_BY":
		return sqlast.AnnotationOwnedBy, true
	case "OWNS":
		return sqlast.AnnotationOwns, true
	case "ACCESSED_BY":
		return sqlast.AnnotationAccessedBy, true
	case "ACCESSES":
		return sqlast.AnnotationAccesses, true
	default:
		return sqlast.AnnotationNone, false
	}
}

func (p *parser) parseColumnDef() (sqlast.ColumnDef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return sqlast.ColumnDef{}, err
	}
	typeName, err := p.expectIdent()
	if err != nil {
		return sqlast.ColumnDef{}, err
	}
	kind, ok := typeKind(typeName)
	if !ok {
		return sqlast.ColumnDef{}, fmt.Errorf("hacky: unknown column type %q", typeName)
	}
	col := sqlast.ColumnDef{Name: name, Kind: kind, Nullable: true}

	for {
		switch {
		case p.eatKeyword("PRIMARY"):
			if err := p.expectKeyword("KEY"); err != nil {
				return sqlast.ColumnDef{}, err
			}
			col.PrimaryKey = true
			col.Nullable = false
		case p.eatKeyword("UNIQUE"):
			col.Unique = true
		case p.eatKeyword("NOT"):
			if err := p.expectKeyword("NULL"); err != nil {
				return sqlast.ColumnDef{}, err
			}
			col.Nullable = false
		case p.eatKeyword("REFERENCES"):
			table, refCol, err := p.parseRefTarget()
			if err != nil {
				return sqlast.ColumnDef{}, err
			}
			col.PlainFK = true
			col.RefTable, col.RefColumn = table, refCol
		case p.tok().kind == tokIdent:
			if ann, ok := annotationKeyword(p.tok().text); ok {
				p.advance()
				table, refCol, err := p.parseRefTarget()
				if err != nil {
					return sqlast.ColumnDef{}, err
				}
				col.Annotation = ann
				col.RefTable, col.RefColumn = table, refCol
				continue
			}
			return col, nil
		default:
			return col, nil
		}
	}
}

// parseRefTarget parses `table(col)`.
func (p *parser) parseRefTarget() (table, column string, err error) {
	table, err = p.expectIdent()
	if err != nil {
		return "", "", err
	}
	if err := p.expectPunct("("); err != nil {
		return "", "", err
	}
	column, err = p.expectIdent()
	if err != nil {
		return "", "", err
	}
	if err := p.expectPunct(")"); err != nil {
		return "", "", err
	}
	return table, column, nil
}

func (p *parser) parseOnRule() (sqlast.OnRule, error) {
	if err := p.expectKeyword("ON"); err != nil {
		return sqlast.OnRule{}, err
	}
	var trigger sqlast.OnRuleTrigger
	switch {
	case p.eatKeyword("GET"):
		trigger = sqlast.OnGet
	case p.eatKeyword("DEL"):
		trigger = sqlast.OnDel
	default:
		return sqlast.OnRule{}, fmt.Errorf("hacky: expected GET or DEL, got %q", p.tok().text)
	}

	rule := sqlast.OnRule{Trigger: trigger}
	ident, err := p.expectIdent()
	if err != nil {
		return sqlast.OnRule{}, err
	}
	if p.eatPunct("(") {
		col, err := p.expectIdent()
		if err != nil {
			return sqlast.OnRule{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return sqlast.OnRule{}, err
		}
		rule.RelatedTable, rule.RelatedColumn = ident, col
	} else {
		rule.Column = ident
	}

	switch {
	case p.eatKeyword("DELETE_ROW"):
		rule.Action = sqlast.ActionDeleteRow
	case p.eatKeyword("ANON"):
		if err := p.expectPunct("("); err != nil {
			return sqlast.OnRule{}, err
		}
		for {
			c, err := p.expectIdent()
			if err != nil {
				return sqlast.OnRule{}, err
			}
			rule.AnonColumns = append(rule.AnonColumns, c)
			if !p.eatPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return sqlast.OnRule{}, err
		}
		rule.Action = sqlast.ActionAnon
	default:
		return sqlast.OnRule{}, fmt.Errorf("hacky: expected ANON(...) or DELETE_ROW, got %q", p.tok().text)
	}
	return rule, nil
}

// --- INSERT / REPLACE ---

func (p *parser) parseInsert() (sqlast.Statement, error) {
	replace := p.isKeyword("REPLACE")
	p.advance() // INSERT | REPLACE
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var columns []string
	if p.eatPunct("(") {
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, c)
			if !p.eatPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var values []sequence.Value
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &sqlast.Insert{Table: table, Columns: columns, Values: values, Replace: replace}, nil
}

// --- UPDATE ---

func (p *parser) parseUpdate() (sqlast.Statement, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}

	upd := &sqlast.Update{Table: table}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		plusCol := ""
		if p.eatPunct("+") {
			plusCol, err = p.expectIdent()
			if err != nil {
				return nil, err
			}
		}
		upd.Columns = append(upd.Columns, col)
		upd.Values = append(upd.Values, v)
		upd.PlusColumn = append(upd.PlusColumn, plusCol)
		if !p.eatPunct(",") {
			break
		}
	}

	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	where, err := p.parseConditions()
	if err != nil {
		return nil, err
	}
	upd.Where = where
	return upd, nil
}

// --- DELETE ---

func (p *parser) parseDelete() (sqlast.Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	del := &sqlast.Delete{Table: table}
	if p.eatKeyword("WHERE") {
		where, err := p.parseConditions()
		if err != nil {
			return nil, err
		}
		del.Where = where
	}
	return del, nil
}

// --- SELECT ---

func (p *parser) parseSelect() (sqlast.Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	var columns []sqlast.ResultColumn
	for {
		if p.isPunct("*") {
			p.advance()
			columns = append(columns, sqlast.ResultColumn{Star: true})
		} else if p.tok().kind == tokString || p.tok().kind == tokNumber || p.tok().kind == tokPlaceholder {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			columns = append(columns, sqlast.ResultColumn{Literal: &v})
		} else {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, sqlast.ResultColumn{Column: c})
		}
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	sel := &sqlast.Select{Table: table, Columns: columns}
	if p.eatKeyword("WHERE") {
		where, err := p.parseConditions()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	return sel, nil
}

func (p *parser) parseConditions() ([]sqlast.Condition, error) {
	var conds []sqlast.Condition
	for {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
		if !p.eatKeyword("AND") {
			break
		}
	}
	return conds, nil
}

func (p *parser) parseCondition() (sqlast.Condition, error) {
	col, err := p.expectIdent()
	if err != nil {
		return sqlast.Condition{}, err
	}
	op, err := p.parseOp()
	if err != nil {
		return sqlast.Condition{}, err
	}
	v, err := p.parseValue()
	if err != nil {
		return sqlast.Condition{}, err
	}
	return sqlast.Condition{Column: col, Op: op, Value: v}, nil
}

func (p *parser) parseOp() (sqlast.ComparisonOp, error) {
	switch {
	case p.eatPunct("="):
		return sqlast.OpEqual, nil
	case p.eatPunct("!"):
		if err := p.expectPunct("="); err != nil {
			return 0, err
		}
		return sqlast.OpNotEqual, nil
	case p.eatPunct("<"):
		if p.eatPunct("=") {
			return sqlast.OpLessEqual, nil
		}
		return sqlast.OpLess, nil
	case p.eatPunct(">"):
		if p.eatPunct("=") {
			return sqlast.OpGreaterEqual, nil
		}
		return sqlast.OpGreater, nil
	default:
		return 0, fmt.Errorf("hacky: expected comparison operator, got %q", p.tok().text)
	}
}

// --- GDPR ---

func (p *parser) parseGDPR() (sqlast.Statement, error) {
	if err := p.expectKeyword("GDPR"); err != nil {
		return nil, err
	}
	var op sqlast.GDPROperation
	switch {
	case p.eatKeyword("GET"):
		op = sqlast.GDPRGet
	case p.eatKeyword("FORGET"):
		op = sqlast.GDPRForget
	default:
		return nil, fmt.Errorf("hacky: expected GET or FORGET, got %q", p.tok().text)
	}
	shardKind, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	id, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &sqlast.GDPRStatement{Operation: op, ShardKind: shardKind, SubjectID: id}, nil
}
