// Package catalog implements the metadata catalog of §4.12: every
// CREATE TABLE/INDEX statement is persisted verbatim, keyed by a
// monotonic counter, in a reserved column family; Initialize replays them in
// order to rebuild the in-memory schema. Grounded on an append-only event
// log (internal/storage/sqlite/audit_log.go writes one row per mutation
// keyed by an auto-increment id and replays it back on load), generalized
// here from an audit trail to a DDL-replay log.
package catalog

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/k9db/k9db/internal/kv"
)

// CF is the reserved column family DDL statements are persisted under.
const CF = "$catalog"

// Catalog persists DDL text keyed by a monotonic counter and replays it on
// Initialize. DDL runs under the single-writer path (CREATE TABLE/INDEX take
// the exclusive lock of §5), so the mutex below only guards against the
// counter itself being read mid-increment, not against concurrent DDL.
type Catalog struct {
	mu   sync.Mutex
	next uint64
}

// New returns a Catalog; store must already have CF created.
func New() *Catalog {
	return &Catalog{}
}

func counterKey(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}

// Append persists ddl as the next entry, returning its assigned counter.
func (c *Catalog) Append(txn kv.WriteTxn, ddl string) (uint64, error) {
	c.mu.Lock()
	n := c.next
	c.mu.Unlock()

	if err := txn.Put(CF, counterKey(n), []byte(ddl)); err != nil {
		return 0, fmt.Errorf("catalog: append entry %d: %w", n, err)
	}

	c.mu.Lock()
	c.next++
	c.mu.Unlock()
	return n, nil
}

// All replays every persisted DDL statement in counter order, for
// Initialize. It also advances the in-memory counter so subsequent Append
// calls continue from where the log left off.
func (c *Catalog) All(snap kv.ReadSnapshot) ([]string, error) {
	it, err := snap.Iterator(CF, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: iterate: %w", err)
	}
	defer it.Close()

	var ddls []string
	var max uint64
	for ; it.Valid(); it.Next() {
		ddls = append(ddls, string(it.Value()))
		if n := binary.BigEndian.Uint64(it.Key()); n >= max {
			max = n + 1
		}
	}
	if max > c.next {
		c.next = max
	}
	return ddls, nil
}
