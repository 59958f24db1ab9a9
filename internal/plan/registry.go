package plan

import "github.com/k9db/k9db/internal/table"

// Map is the simplest Tables implementation: a name -> *table.Table lookup,
// exactly what the metadata catalog (§4.12) holds in memory once DDL replay
// completes.
type Map map[string]*table.Table

func (m Map) Table(name string) (*table.Table, bool) {
	t, ok := m[name]
	return t, ok
}
