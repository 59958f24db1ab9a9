// Package views implements the opaque view bridge of §4.11: a sink that
// accumulates positive/negative record deltas per view and answers Query
// with the current materialized contents. The storage layer and SQL engine
// treat it as a black box with exactly two operations, the same way
// internal/search treats its search index as a derived, rebuild-from-source
// structure fed by a stream of document events rather than queried
// directly against primary storage.
package views

import (
	"sync"

	"github.com/k9db/k9db/internal/sequence"
)

// Sink accumulates per-view record multisets from push deltas.
type Sink struct {
	mu    sync.RWMutex
	views map[string]*view
}

type view struct {
	rows   map[string]sequence.Row
	counts map[string]int
}

// New returns an empty view bridge.
func New() *Sink {
	return &Sink{views: make(map[string]*view)}
}

func rowKey(row sequence.Row) string {
	return row.String()
}

// Push records a delta: positive adds one occurrence of row to viewName,
// negative removes one. A row with a zero remaining count is evicted from
// the materialized view.
func (s *Sink) Push(viewName string, row sequence.Row, positive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.views[viewName]
	if !ok {
		v = &view{rows: make(map[string]sequence.Row), counts: make(map[string]int)}
		s.views[viewName] = v
	}
	key := rowKey(row)
	if positive {
		v.rows[key] = row
		v.counts[key]++
		return
	}
	v.counts[key]--
	if v.counts[key] <= 0 {
		delete(v.counts, key)
		delete(v.rows, key)
	}
}

// Query returns the current materialized contents of viewName, in no
// particular order.
func (s *Sink) Query(viewName string) []sequence.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.views[viewName]
	if !ok {
		return nil
	}
	rows := make([]sequence.Row, 0, len(v.rows))
	for _, r := range v.rows {
		rows = append(rows, r)
	}
	return rows
}

// Update is a convenience helper for §4.7's UPDATE contract: emit the old
// row as a negative delta followed by the new row as a positive one.
func (s *Sink) Update(viewName string, oldRow, newRow sequence.Row) {
	s.Push(viewName, oldRow, false)
	s.Push(viewName, newRow, true)
}
