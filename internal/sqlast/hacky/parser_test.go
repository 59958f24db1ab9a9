package hacky

import (
	"testing"

	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sequence"
)

func mustParse(t *testing.T, query string, args ...sequence.Value) sqlast.Statement {
	t.Helper()
	stmt, err := Parse(query, args)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	return stmt
}

func TestParseCreateDataSubjectTable(t *testing.T) {
	stmt := mustParse(t, `CREATE DATA_SUBJECT TABLE user (id INT PRIMARY KEY, name TEXT);`)
	ct, ok := stmt.(*sqlast.CreateTable)
	if !ok || !ct.DataSubject || ct.Name != "user" || len(ct.Columns) != 2 {
		t.Fatalf("unexpected parse: %#v", stmt)
	}
	if !ct.Columns[0].PrimaryKey || ct.Columns[0].Kind != sequence.KindInt {
		t.Fatalf("unexpected pk column: %#v", ct.Columns[0])
	}
}

func TestParseCreateTableWithOwnershipAndOnRules(t *testing.T) {
	stmt := mustParse(t, `CREATE TABLE msg (
		id INT PRIMARY KEY,
		sender INT OWNED_BY user(id),
		receiver INT OWNED_BY user(id),
		ON DEL receiver ANON(receiver)
	);`)
	ct := stmt.(*sqlast.CreateTable)
	if len(ct.Columns) != 3 || len(ct.OnRules) != 1 {
		t.Fatalf("unexpected shape: %d columns, %d rules", len(ct.Columns), len(ct.OnRules))
	}
	sender := ct.Columns[1]
	if sender.Annotation != sqlast.AnnotationOwnedBy || sender.RefTable != "user" || sender.RefColumn != "id" {
		t.Fatalf("unexpected annotation: %#v", sender)
	}
	rule := ct.OnRules[0]
	if rule.Trigger != sqlast.OnDel || rule.Column != "receiver" || rule.Action != sqlast.ActionAnon {
		t.Fatalf("unexpected rule: %#v", rule)
	}
	if len(rule.AnonColumns) != 1 || rule.AnonColumns[0] != "receiver" {
		t.Fatalf("unexpected anon columns: %#v", rule.AnonColumns)
	}
}

func TestParseCreateIndex(t *testing.T) {
	stmt := mustParse(t, `CREATE INDEX msg_sender ON msg (sender);`)
	idx := stmt.(*sqlast.CreateIndex)
	if idx.Table != "msg" || len(idx.Columns) != 1 || idx.Columns[0] != "sender" {
		t.Fatalf("unexpected index: %#v", idx)
	}
}

func TestParseInsertWithPlaceholders(t *testing.T) {
	stmt := mustParse(t, `INSERT INTO msg VALUES (?, ?, ?);`,
		sequence.IntValue(1), sequence.IntValue(0), sequence.IntValue(10))
	ins := stmt.(*sqlast.Insert)
	if ins.Replace || ins.Table != "msg" || len(ins.Values) != 3 {
		t.Fatalf("unexpected insert: %#v", ins)
	}
	if ins.Values[2].Int != 10 {
		t.Fatalf("unexpected third value: %#v", ins.Values[2])
	}
}

func TestParseReplaceWithColumns(t *testing.T) {
	stmt := mustParse(t, `REPLACE INTO user (id, name) VALUES (1, 'Alice');`)
	ins := stmt.(*sqlast.Insert)
	if !ins.Replace || len(ins.Columns) != 2 || ins.Columns[1] != "name" {
		t.Fatalf("unexpected replace: %#v", ins)
	}
	if ins.Values[1].Text != "Alice" {
		t.Fatalf("unexpected value: %#v", ins.Values[1])
	}
}

func TestParseUpdateWithPlusColumn(t *testing.T) {
	stmt := mustParse(t, `UPDATE counters SET total = 1 + delta WHERE id = 5;`)
	upd := stmt.(*sqlast.Update)
	if upd.Table != "counters" || upd.Columns[0] != "total" || upd.PlusColumn[0] != "delta" {
		t.Fatalf("unexpected update: %#v", upd)
	}
	if len(upd.Where) != 1 || upd.Where[0].Column != "id" || upd.Where[0].Value.Int != 5 {
		t.Fatalf("unexpected where: %#v", upd.Where)
	}
}

func TestParseDeleteNoWhere(t *testing.T) {
	stmt := mustParse(t, `DELETE FROM msg;`)
	del := stmt.(*sqlast.Delete)
	if del.Table != "msg" || del.Where != nil {
		t.Fatalf("unexpected delete: %#v", del)
	}
}

func TestParseSelectWithMultipleConditions(t *testing.T) {
	stmt := mustParse(t, `SELECT id, sender FROM msg WHERE sender = 0 AND receiver != 10;`)
	sel := stmt.(*sqlast.Select)
	if sel.Table != "msg" || len(sel.Columns) != 2 || len(sel.Where) != 2 {
		t.Fatalf("unexpected select: %#v", sel)
	}
	if sel.Where[1].Op != sqlast.OpNotEqual {
		t.Fatalf("unexpected op: %#v", sel.Where[1])
	}
}

func TestParseSelectStar(t *testing.T) {
	stmt := mustParse(t, `SELECT * FROM msg;`)
	sel := stmt.(*sqlast.Select)
	if len(sel.Columns) != 1 || !sel.Columns[0].Star {
		t.Fatalf("unexpected select *: %#v", sel)
	}
}

func TestParseGDPRGetAndForget(t *testing.T) {
	get := mustParse(t, `GDPR GET user 0;`).(*sqlast.GDPRStatement)
	if get.Operation != sqlast.GDPRGet || get.ShardKind != "user" || get.SubjectID.Int != 0 {
		t.Fatalf("unexpected GDPR GET: %#v", get)
	}
	forget := mustParse(t, `GDPR FORGET user 0;`).(*sqlast.GDPRStatement)
	if forget.Operation != sqlast.GDPRForget {
		t.Fatalf("unexpected GDPR FORGET: %#v", forget)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse(`FROB BAZ;`, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
