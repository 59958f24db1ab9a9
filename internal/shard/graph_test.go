package shard

import "testing"

func TestTwoOwnerFanout(t *testing.T) {
	g := NewGraph()
	must(t, g.AddTable("user", true, nil))
	must(t, g.AddTable("msg", false, []Annotation{
		{Kind: OwnedBy, Column: "sender", RefTable: "user", RefColumn: "id"},
		{Kind: OwnedBy, Column: "receiver", RefTable: "user", RefColumn: "id"},
	}))

	chains := g.ChainsFrom("msg")
	if len(chains) != 2 {
		t.Fatalf("expected 2 chains for msg, got %d", len(chains))
	}
	for _, c := range chains {
		if c.ShardKind() != "user" {
			t.Fatalf("chain shard kind = %q, want user", c.ShardKind())
		}
		if len(c) != 1 || c[0].Type != Direct {
			t.Fatalf("expected single direct descriptor, got %+v", c)
		}
	}
}

func TestVariableOwnershipChain(t *testing.T) {
	g := NewGraph()
	must(t, g.AddTable("user", true, nil))
	must(t, g.AddTable("grps", false, nil))
	must(t, g.AddTable("association", false, []Annotation{
		{Kind: Owns, Column: "group_id", RefTable: "grps", RefColumn: "gid"},
		{Kind: OwnedBy, Column: "user_id", RefTable: "user", RefColumn: "id"},
	}))

	chains := g.ChainsFrom("grps")
	if len(chains) != 1 {
		t.Fatalf("expected 1 chain for grps, got %d", len(chains))
	}
	c := chains[0]
	if !c[0].IsVarowned {
		t.Fatalf("expected variable-owned descriptor, got %+v", c[0])
	}
	if c.ShardKind() != "user" {
		t.Fatalf("chain shard kind = %q, want user", c.ShardKind())
	}
}

func TestOwnsTriggersRecordedOnDeclaringTable(t *testing.T) {
	g := NewGraph()
	must(t, g.AddTable("user", true, nil))
	must(t, g.AddTable("grps", false, nil))
	must(t, g.AddTable("association", false, []Annotation{
		{Kind: Owns, Column: "group_id", RefTable: "grps", RefColumn: "gid"},
		{Kind: OwnedBy, Column: "user_id", RefTable: "user", RefColumn: "id"},
	}))

	triggers := g.OwnsTriggers("association")
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger on association, got %d", len(triggers))
	}
	tr := triggers[0]
	if tr.TargetTable != "grps" || tr.TargetColumn != "gid" || tr.SourceColumn != "group_id" || tr.AccessOnly {
		t.Fatalf("unexpected trigger: %+v", tr)
	}
	if triggers2 := g.OwnsTriggers("grps"); triggers2 != nil {
		t.Fatalf("grps should have no outgoing triggers, got %+v", triggers2)
	}
}

func TestSelfReferencingChainTerminates(t *testing.T) {
	g := NewGraph()
	must(t, g.AddTable("commenters", true, nil))
	must(t, g.AddTable("comments", false, []Annotation{
		{Kind: OwnedBy, Column: "author_id", RefTable: "commenters", RefColumn: "id"},
		{Kind: OwnedBy, Column: "parent_id", RefTable: "comments", RefColumn: "id", Nullable: true},
	}))

	chains := g.ChainsFrom("comments")
	if len(chains) == 0 {
		t.Fatal("expected at least one chain")
	}
	for _, c := range chains {
		if c.ShardKind() != "commenters" {
			t.Fatalf("chain shard kind = %q, want commenters", c.ShardKind())
		}
	}
}

func TestAccessOnlyNotOwnership(t *testing.T) {
	g := NewGraph()
	must(t, g.AddTable("user", true, nil))
	must(t, g.AddTable("file", false, []Annotation{
		{Kind: AccessedBy, Column: "shared_with", RefTable: "user", RefColumn: "id"},
	}))

	chains := g.ChainsFrom("file")
	if len(chains) != 1 || !chains[0].AccessOnly() {
		t.Fatalf("expected one access-only chain, got %+v", chains)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
