// Package kv pins the transactional ordered-KV interface of §4.3: per
// column-family handles, locking write-transactions with read-your-writes,
// and non-locking read snapshots. It is the Go analogue of the
// storage.Storage / storage.Transaction pair in internal/storage/provider.go
// and internal/storage/dolt/transaction.go, generalized from "one SQL
// database" to "one ordered KV engine with per-table/per-index column
// families".
package kv

import "context"

// Store is an ordered KV engine with per-column-family handles. One column
// family exists per logical table, one per index, and one reserved for the
// metadata catalog (§4.12).
type Store interface {
	// CreateColumnFamily allocates cf if it does not already exist.
	CreateColumnFamily(cf string) error

	// RunInTransaction runs fn inside a WriteTxn, retrying on
	// ErrTransientConflict with backoff up to the configured lock-wait
	// timeout, mirroring DoltStore.RunInTransaction's retry loop.
	RunInTransaction(ctx context.Context, fn func(WriteTxn) error) error

	// Begin starts a write transaction directly, for callers (the
	// compliance transaction, session pragmas) that need explicit
	// Commit/Rollback control instead of the RunInTransaction wrapper.
	Begin(ctx context.Context) (WriteTxn, error)

	// Snapshot opens a non-locking read snapshot, anchored lazily on first
	// read.
	Snapshot(ctx context.Context) (ReadSnapshot, error)

	Close() error
}

// WriteTxn is a locking read/write transaction. Commit or Rollback is
// idempotent after the first call succeeds. The transaction holds an
// implicit snapshot set at its first read; a concurrent writer committing
// to that read set causes Commit to fail with ErrTransientConflict.
type WriteTxn interface {
	Put(cf string, key, value []byte) error
	Delete(cf string, key []byte) error

	// GetForUpdate performs a locking read: it returns ok=false if key is
	// absent, and otherwise places a lock on key for the lifetime of the
	// transaction.
	GetForUpdate(cf string, key []byte) (value []byte, ok bool, err error)

	// MultiGetForUpdate is a batched GetForUpdate.
	MultiGetForUpdate(cf string, keys [][]byte) ([][]byte, error)

	// Iterator returns a prefix-respecting iterator over cf, seeked to
	// prefix; every key it yields is locked as it is advanced past, which
	// is what GDPR FORGET's GetShard traversal relies on (§5).
	Iterator(cf string, prefix []byte) (Iterator, error)

	Commit() error
	Rollback() error
}

// ReadSnapshot is a non-locking view of the store, anchored to a snapshot
// taken lazily on first read.
type ReadSnapshot interface {
	Get(cf string, key []byte) (value []byte, ok bool, err error)
	MultiGet(cf string, keys [][]byte) ([][]byte, error)
	Iterator(cf string, prefix []byte) (Iterator, error)
	Close() error
}

// Iterator walks a column family's keys in order, resetting Valid() to
// false once a yielded key no longer shares the seek prefix — the
// "prefix-respecting" wrapper behavior of §4.3, since the underlying
// engine's own cursor does not honor prefix-bounded iteration on its own.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}
