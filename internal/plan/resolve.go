// Package plan compiles the per-statement sharding plans of §4.6: where an
// inserted row lands, which shards a delete or update must touch, and which
// index a select should use. It sits between internal/sqlast (what the
// statement says) and internal/table/internal/shard (how rows and ownership
// edges are actually stored), the same seam drawn between parsed issue
// operations and internal/storage's transaction API.
package plan

import (
	"fmt"

	"github.com/k9db/k9db/internal/sequence"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlerr"
	"github.com/k9db/k9db/internal/table"
)

// Tables resolves a table by name, the lookup every multi-table plan needs
// to follow a foreign key into its owner's own storage.
type Tables interface {
	Table(name string) (*table.Table, bool)
}

// resolveChains computes the set of concrete shards row implies for tbl,
// given graph's ownership chains. It does not consult or mutate storage
// beyond read-only lookups against the chain's immediate neighbor — one
// table hop is always enough, because a transitively-owned neighbor already
// stores itself once per shard it belongs to (its own insert already
// resolved any chain beyond this one hop), so following this row's FK into
// the neighbor's PK index yields every shard this row must also live in.
//
// A chain whose head descriptor is variable-owned (§4.5's OWNS/ACCESSES
// inverse edge) never resolves here: no OWNS row can yet reference a row
// that does not exist, so a variable chain always contributes nothing on
// this table's own insert/update. It resolves later, when a row is written
// to the table that declares the OWNS annotation — see
// shard.Graph.OwnsTriggers and cascadeOwnsTriggers in insert.go.
func resolveChains(acc table.Accessor, tables Tables, g *shard.Graph, tbl *table.Table, row sequence.Row) ([]string, error) {
	chains := g.ChainsFrom(tbl.Name)
	seen := map[string]bool{}
	var shards []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			shards = append(shards, name)
		}
	}

	for _, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		head := chain[0]
		if head.IsVarowned {
			continue
		}
		col, ok := tbl.ColumnIndex(head.DownColumn)
		if !ok {
			return nil, fmt.Errorf("plan: table %s: chain column %q not found", tbl.Name, head.DownColumn)
		}
		fk := row[col]
		if fk.IsNull() {
			if head.Nullable {
				continue
			}
			return nil, sqlerr.New(sqlerr.ErrIntegrity, "table %s: column %s is not nullable but NULL", tbl.Name, head.DownColumn)
		}

		if g.IsDataSubject(head.NextTable) {
			owner, ok := tables.Table(head.NextTable)
			if !ok {
				return nil, fmt.Errorf("plan: unknown owner table %q", head.NextTable)
			}
			shardName := shard.New(chain.ShardKind(), fk.String()).String()
			_, exists, err := owner.Get(acc, shardName, fk)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: foreign key %s=%s has no matching %s row", tbl.Name, head.DownColumn, fk.String(), head.NextTable)
			}
			add(shardName)
			continue
		}

		owner, ok := tables.Table(head.NextTable)
		if !ok {
			return nil, fmt.Errorf("plan: unknown owner table %q", head.NextTable)
		}
		hits, err := owner.IndexLookupDedup(acc, owner.PKIndex(), []sequence.Value{fk}, 0)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			return nil, sqlerr.New(sqlerr.ErrSchemaViolation, "table %s: foreign key %s=%s has no matching %s row", tbl.Name, head.DownColumn, fk.String(), head.NextTable)
		}
		for _, hit := range hits {
			add(hit.Shard)
		}
	}
	return shards, nil
}
