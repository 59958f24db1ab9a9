package shard

import "fmt"

// rawEdge is one undirected-in-storage, directed-in-traversal FK link,
// rooted at the table it is stored under. OWNED_BY/ACCESSED_BY annotations
// add an edge directly under the declaring table; OWNS/ACCESSES annotations
// add the mirrored edge under the *referenced* table, since it is the
// referenced table whose shard placement the edge actually controls.
type rawEdge struct {
	downColumn string
	nextTable  string
	upColumn   string
	accessOnly bool
	variable   bool
	nullable   bool
}

type tableNode struct {
	name          string
	isDataSubject bool
	edges         []rawEdge
	triggers      []OwnsTrigger
}

// OwnsTrigger records that inserting or updating a row in the declaring
// table (the table an OWNS/ACCESSES annotation is written on) may move the
// row it references in TargetTable: SourceColumn (on the declaring row)
// names the value to look up TargetColumn by, in TargetTable.
type OwnsTrigger struct {
	TargetTable  string
	TargetColumn string
	SourceColumn string
	AccessOnly   bool
}

// Graph holds the ownership-edge graph for every table declared so far and
// derives ownership chains from it by DFS, per §4.5.
type Graph struct {
	tables map[string]*tableNode
}

// NewGraph returns an empty shard-descriptor graph.
func NewGraph() *Graph {
	return &Graph{tables: make(map[string]*tableNode)}
}

func (g *Graph) ensure(name string) *tableNode {
	n, ok := g.tables[name]
	if !ok {
		n = &tableNode{name: name}
		g.tables[name] = n
	}
	return n
}

// AddTable registers table with the graph. isDataSubject must be true iff
// the table was declared CREATE DATA_SUBJECT TABLE — its shard kind is then
// its own name. annotations are the OWNED_BY/OWNS/ACCESSED_BY/ACCESSES
// constraints parsed off the table's FOREIGN KEY clauses; every RefTable
// they name must already have been added (CREATE TABLE statements must
// declare FK targets before referencing them, as in standard SQL).
func (g *Graph) AddTable(name string, isDataSubject bool, annotations []Annotation) error {
	node := g.ensure(name)
	node.isDataSubject = isDataSubject

	for _, ann := range annotations {
		if _, ok := g.tables[ann.RefTable]; !ok {
			return fmt.Errorf("shard: table %q references undeclared table %q", name, ann.RefTable)
		}
		switch ann.Kind {
		case OwnedBy, AccessedBy:
			node.edges = append(node.edges, rawEdge{
				downColumn: ann.Column,
				nextTable:  ann.RefTable,
				upColumn:   ann.RefColumn,
				accessOnly: ann.Kind == AccessedBy,
				nullable:   ann.Nullable,
			})
		case Owns, Accesses:
			target := g.ensure(ann.RefTable)
			target.edges = append(target.edges, rawEdge{
				downColumn: ann.RefColumn,
				nextTable:  name,
				upColumn:   ann.Column,
				accessOnly: ann.Kind == Accesses,
				variable:   true,
				nullable:   ann.Nullable,
			})
			node.triggers = append(node.triggers, OwnsTrigger{
				TargetTable:  ann.RefTable,
				TargetColumn: ann.RefColumn,
				SourceColumn: ann.Column,
				AccessOnly:   ann.Kind == Accesses,
			})
		}
	}
	return nil
}

// IsDataSubject reports whether table was declared CREATE DATA_SUBJECT TABLE.
func (g *Graph) IsDataSubject(table string) bool {
	n, ok := g.tables[table]
	return ok && n.isDataSubject
}

// ChainsFrom returns every ownership chain rooted at table, derived by DFS
// over the edge graph. A data-subject table has no chains of its own — its
// primary key directly names its shard id. Cycles (a table reachable from
// itself, e.g. a self-referencing FK) are cut by tracking the set of tables
// visited on the current DFS path, per §9.
func (g *Graph) ChainsFrom(table string) []Chain {
	node, ok := g.tables[table]
	if !ok || node.isDataSubject {
		return nil
	}
	return g.dfs(table, map[string]bool{table: true})
}

func (g *Graph) dfs(table string, visited map[string]bool) []Chain {
	node, ok := g.tables[table]
	if !ok {
		return nil
	}

	var chains []Chain
	for _, e := range node.edges {
		if visited[e.nextTable] {
			continue // cycle: already on this DFS path
		}
		next, ok := g.tables[e.nextTable]
		if !ok {
			continue
		}
		if next.isDataSubject {
			chains = append(chains, Chain{{
				Type:       Direct,
				ShardKind:  e.nextTable,
				DownColumn: e.downColumn,
				NextTable:  e.nextTable,
				UpColumn:   e.upColumn,
				IsVarowned: e.variable,
				AccessOnly: e.accessOnly,
				Nullable:   e.nullable,
			}})
			continue
		}

		sub := map[string]bool{table: true}
		for k := range visited {
			sub[k] = true
		}
		sub[e.nextTable] = true

		for _, tail := range g.dfs(e.nextTable, sub) {
			head := Descriptor{
				Type:       Transitive,
				ShardKind:  tail.ShardKind(),
				DownColumn: e.downColumn,
				NextTable:  e.nextTable,
				UpColumn:   e.upColumn,
				IsVarowned: e.variable,
				AccessOnly: e.accessOnly || tail.AccessOnly(),
				Nullable:   e.nullable,
			}
			chain := make(Chain, 0, len(tail)+1)
			chain = append(chain, head)
			chain = append(chain, tail...)
			chains = append(chains, chain)
		}
	}
	return chains
}

// OwnsTriggers returns the OWNS/ACCESSES annotations declared on table,
// i.e. the set of (target table, column) pairs that must be re-evaluated
// for a possible shard move whenever a row is inserted into or updated in
// table — the "inverse edge" side of §4.5's OWNS/ACCESSES semantics.
func (g *Graph) OwnsTriggers(table string) []OwnsTrigger {
	n, ok := g.tables[table]
	if !ok {
		return nil
	}
	return n.triggers
}

// OwnersOf returns the distinct subject kinds reachable from table across
// all of its ownership chains.
func (g *Graph) OwnersOf(table string) []string {
	seen := map[string]bool{}
	var kinds []string
	for _, c := range g.ChainsFrom(table) {
		k := c.ShardKind()
		if k != "" && !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// IsNullableChain reports whether every link's foreign-key column is
// nullable — a compliance warning signal (§4.5): a row of this table could
// legally exist with no resolvable owner at all.
func IsNullableChain(chain Chain) bool {
	if len(chain) == 0 {
		return false
	}
	for _, d := range chain {
		if !d.Nullable {
			return false
		}
	}
	return true
}
