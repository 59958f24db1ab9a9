// Package bboltkv implements kv.Store on top of go.etcd.io/bbolt.
//
// No example repo in the pack imports an embedded ordered-KV engine
// directly comparable to RocksDB; other_examples' cuemby/warren imports
// go.etcd.io/bbolt for its Raft log and state store, which is the closest
// available ecosystem match — an ordered, byte-slice-keyed, bucket-per-table
// embedded store. A bbolt bucket is a k9db column family.
package bboltkv

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	bolt "go.etcd.io/bbolt"

	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sqlerr"
)

// Store wraps a single bbolt database file. bbolt serializes all writers
// against one another already (one write transaction at a time), so unlike
// a multi-writer engine there is no serialization-conflict class of error
// to retry on commit. Begin waits for the single writer slot with no time
// limit; RunInTransaction's retry loop bounds only how long attempts that
// fail with ErrTransientConflict keep being retried.
type Store struct {
	db          *bolt.DB
	lockTimeout time.Duration
}

// Options configures a Store.
type Options struct {
	// LockTimeout is the maximum time RunInTransaction keeps retrying
	// attempts that failed with ErrTransientConflict before returning the
	// last error. It does not bound the wait for the writer slot inside
	// Begin. Defaults to 10s per §5.
	LockTimeout time.Duration
}

// Open opens (creating if absent) the bbolt database file at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bboltkv: open %s: %w", path, err)
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout == 0 {
		lockTimeout = 10 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateColumnFamily(cf string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cf))
		return err
	})
}

func (s *Store) Begin(ctx context.Context) (kv.WriteTxn, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.ErrTransientConflict, err, "bboltkv: begin write txn")
	}
	return &writeTxn{tx: tx, ctx: ctx}, nil
}

func (s *Store) Snapshot(ctx context.Context) (kv.ReadSnapshot, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("bboltkv: begin read snapshot: %w", err)
	}
	return &readSnapshot{tx: tx}, nil
}

// RunInTransaction runs fn inside a WriteTxn, retrying with exponential
// backoff bounded by the configured lock-wait timeout — the bbolt analogue
// of DoltStore.RunInTransaction's serialization-conflict retry loop.
func (s *Store) RunInTransaction(ctx context.Context, fn func(kv.WriteTxn) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.lockTimeout
	policy.InitialInterval = 10 * time.Millisecond

	var lastErr error
	op := func() error {
		txn, err := s.Begin(ctx)
		if err != nil {
			lastErr = err
			return err
		}

		if err := fn(txn); err != nil {
			_ = txn.Rollback()
			lastErr = err
			if sqlerr.Is(err, sqlerr.ErrTransientConflict) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}

		if err := txn.Commit(); err != nil {
			lastErr = err
			if sqlerr.Is(err, sqlerr.ErrTransientConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

var _ kv.Store = (*Store)(nil)
