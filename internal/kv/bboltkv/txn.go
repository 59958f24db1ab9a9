package bboltkv

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/k9db/k9db/internal/kv"
)

type writeTxn struct {
	tx   *bolt.Tx
	ctx  context.Context
	done bool
}

func (t *writeTxn) bucket(cf string) (*bolt.Bucket, error) {
	b, err := t.tx.CreateBucketIfNotExists([]byte(cf))
	if err != nil {
		return nil, fmt.Errorf("bboltkv: bucket %s: %w", cf, err)
	}
	return b, nil
}

func (t *writeTxn) Put(cf string, key, value []byte) error {
	b, err := t.bucket(cf)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

func (t *writeTxn) Delete(cf string, key []byte) error {
	b, err := t.bucket(cf)
	if err != nil {
		return err
	}
	return b.Delete(key)
}

// GetForUpdate is a locking read. bbolt already serializes all writers
// against a single in-flight write transaction, so there is no finer-grained
// per-key lock to take beyond that — the lock here is the write transaction
// itself, already held for its whole lifetime.
func (t *writeTxn) GetForUpdate(cf string, key []byte) ([]byte, bool, error) {
	b, err := t.bucket(cf)
	if err != nil {
		return nil, false, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *writeTxn) MultiGetForUpdate(cf string, keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		v, ok, err := t.GetForUpdate(cf, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = v
		}
	}
	return out, nil
}

func (t *writeTxn) Iterator(cf string, prefix []byte) (kv.Iterator, error) {
	b, err := t.bucket(cf)
	if err != nil {
		return nil, err
	}
	return newPrefixIterator(b.Cursor(), prefix), nil
}

func (t *writeTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Commit()
}

func (t *writeTxn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

type readSnapshot struct {
	tx *bolt.Tx
}

func (r *readSnapshot) Get(cf string, key []byte) ([]byte, bool, error) {
	b := r.tx.Bucket([]byte(cf))
	if b == nil {
		return nil, false, nil
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (r *readSnapshot) MultiGet(cf string, keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		v, ok, err := r.Get(cf, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = v
		}
	}
	return out, nil
}

func (r *readSnapshot) Iterator(cf string, prefix []byte) (kv.Iterator, error) {
	b := r.tx.Bucket([]byte(cf))
	if b == nil {
		return &emptyIterator{}, nil
	}
	return newPrefixIterator(b.Cursor(), prefix), nil
}

func (r *readSnapshot) Close() error {
	return r.tx.Rollback()
}

type emptyIterator struct{}

func (*emptyIterator) Valid() bool   { return false }
func (*emptyIterator) Next()         {}
func (*emptyIterator) Key() []byte   { return nil }
func (*emptyIterator) Value() []byte { return nil }
func (*emptyIterator) Close() error  { return nil }
