package table

import "github.com/k9db/k9db/internal/kv"

// Accessor is the read side of either kv.WriteTxn (locking) or
// kv.ReadSnapshot (non-locking), so that Get/MultiGet/GetAll/GetShard/
// IndexLookup can run unmodified against whichever the caller holds — the
// table layer itself never cares whether a read locks, only the transaction
// boundary does. Its methods are unexported so only this package's two
// adapters below can satisfy it.
type Accessor interface {
	get(cf string, key []byte) ([]byte, bool, error)
	multiGet(cf string, keys [][]byte) ([][]byte, error)
	iterator(cf string, prefix []byte) (kv.Iterator, error)
}

// FromWriteTxn adapts a kv.WriteTxn to Accessor; every read through it is a
// locking GetForUpdate/Iterator, matching §4.3's "iterator locks each key it
// advances past".
func FromWriteTxn(txn kv.WriteTxn) Accessor { return writeAccessor{txn} }

// FromSnapshot adapts a kv.ReadSnapshot to Accessor; every read through it
// is non-locking.
func FromSnapshot(snap kv.ReadSnapshot) Accessor { return readAccessor{snap} }

type writeAccessor struct{ txn kv.WriteTxn }

func (w writeAccessor) get(cf string, key []byte) ([]byte, bool, error) {
	return w.txn.GetForUpdate(cf, key)
}

func (w writeAccessor) multiGet(cf string, keys [][]byte) ([][]byte, error) {
	return w.txn.MultiGetForUpdate(cf, keys)
}

func (w writeAccessor) iterator(cf string, prefix []byte) (kv.Iterator, error) {
	return w.txn.Iterator(cf, prefix)
}

type readAccessor struct{ snap kv.ReadSnapshot }

func (r readAccessor) get(cf string, key []byte) ([]byte, bool, error) {
	return r.snap.Get(cf, key)
}

func (r readAccessor) multiGet(cf string, keys [][]byte) ([][]byte, error) {
	return r.snap.MultiGet(cf, keys)
}

func (r readAccessor) iterator(cf string, prefix []byte) (kv.Iterator, error) {
	return r.snap.Iterator(cf, prefix)
}
