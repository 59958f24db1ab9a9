package bboltkv

import (
	"bytes"

	bolt "go.etcd.io/bbolt"
)

// prefixIterator composes a bbolt cursor with a captured seek prefix,
// reporting Valid()==false once the cursor advances past the last key
// sharing that prefix. This is the "prefix-respecting iterator" of §4.3: a
// wrapper, not an inheritance relationship, over bbolt's own cursor, which
// (like RocksDB's write-batch-aware iterator) does not itself honor a
// prefix-bounded scan.
type prefixIterator struct {
	cursor *bolt.Cursor
	prefix []byte
	key    []byte
	value  []byte
	valid  bool
}

func newPrefixIterator(c *bolt.Cursor, prefix []byte) *prefixIterator {
	it := &prefixIterator{cursor: c, prefix: prefix}
	if len(prefix) == 0 {
		it.key, it.value = c.First()
	} else {
		it.key, it.value = c.Seek(prefix)
	}
	it.checkPrefix()
	return it
}

func (it *prefixIterator) checkPrefix() {
	it.valid = it.key != nil && bytes.HasPrefix(it.key, it.prefix)
}

func (it *prefixIterator) Valid() bool { return it.valid }

func (it *prefixIterator) Next() {
	if !it.valid {
		return
	}
	it.key, it.value = it.cursor.Next()
	it.checkPrefix()
}

func (it *prefixIterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.key
}

func (it *prefixIterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.value
}

func (it *prefixIterator) Close() error { return nil }
