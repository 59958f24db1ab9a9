package table

import (
	"fmt"

	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sequence"
)

// Index is a secondary data structure stored in its own column family,
// mapping an indexed value (or composite prefix of values) to the set of
// (shard, pk) rows holding it. Per §3, its key format is
// <indexed_value(s)> 0x1E <shard> 0x1E <pk> 0x1E — the key alone carries
// every bit of information, so index entries store an empty value.
type Index struct {
	Name    string
	Table   *Table
	Columns []int
	Unique  bool
	CF      string
}

func (idx *Index) indexedValues(row sequence.Row) []sequence.Value {
	values := make([]sequence.Value, len(idx.Columns))
	for i, c := range idx.Columns {
		values[i] = row[c]
	}
	return values
}

func (idx *Index) key(shardName string, row sequence.Row) []byte {
	return sequence.NewIndexKey(idx.indexedValues(row), shardName, row[idx.Table.PKColumn]).Bytes()
}

// referencesAny reports whether any of idx's columns is in changed,
// i.e. idx must be updated when any of these columns change.
func (idx *Index) referencesAny(changed map[int]bool) bool {
	for _, c := range idx.Columns {
		if changed[c] {
			return true
		}
	}
	return false
}

// IndexAdd extracts idx's indexed columns from row and writes the entry for
// (shardName, row's pk).
func (t *Table) IndexAdd(txn kv.WriteTxn, idx *Index, shardName string, row sequence.Row) error {
	return txn.Put(idx.CF, idx.key(shardName, row), []byte{})
}

// IndexDelete removes the entry idx holds for (shardName, row's pk).
// updatePK mirrors §4.4's signature; it exists because the PK index's entry
// for a stale primary key must be removed even when a non-PK column update
// leaves every other index untouched — callers pass false when row's PK
// itself did not change and no PK-index maintenance is therefore needed.
func (t *Table) IndexDelete(txn kv.WriteTxn, idx *Index, shardName string, row sequence.Row, updatePK bool) error {
	if idx == t.PKIndex() && !updatePK {
		return nil
	}
	return txn.Delete(idx.CF, idx.key(shardName, row))
}

// IndexUpdate moves idx's entry from oldRow to newRow within shardName,
// skipping the write entirely when idx's indexed columns did not change
// between the two rows.
func (t *Table) IndexUpdate(txn kv.WriteTxn, idx *Index, shardName string, oldRow, newRow sequence.Row) error {
	oldKey := idx.key(shardName, oldRow)
	newKey := idx.key(shardName, newRow)
	if string(oldKey) == string(newKey) {
		return nil
	}
	if err := txn.Delete(idx.CF, oldKey); err != nil {
		return err
	}
	return txn.Put(idx.CF, newKey, []byte{})
}

// ShardPK is one (shard, pk) hit returned by an index lookup.
type ShardPK struct {
	Shard string
	PK    sequence.Value
}

func decodeIndexKey(idx *Index, raw []byte) (ShardPK, error) {
	cols := sequence.Wrap(raw).Split()
	want := len(idx.Columns) + 2
	if len(cols) != want {
		return ShardPK{}, fmt.Errorf("index %s: key has %d columns, want %d", idx.Name, len(cols), want)
	}
	shardCol := cols[len(idx.Columns)]
	pkCol := cols[len(idx.Columns)+1]
	pkKind := idx.Table.Columns[idx.Table.PKColumn].Kind
	pk, err := sequence.Decode(pkKind, pkCol)
	if err != nil {
		return ShardPK{}, fmt.Errorf("index %s: decode pk: %w", idx.Name, err)
	}
	return ShardPK{Shard: string(shardCol), PK: pk}, nil
}

// IndexLookup prefix-scans idx for rows matching values (a prefix of idx's
// columns), returning up to limit hits in index order. limit <= 0 means
// unbounded.
func (t *Table) IndexLookup(acc Accessor, idx *Index, values []sequence.Value, limit int) ([]ShardPK, error) {
	prefix := sequence.New()
	for _, v := range values {
		prefix.Append(v)
	}
	it, err := acc.iterator(idx.CF, prefix.Bytes())
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var hits []ShardPK
	for ; it.Valid(); it.Next() {
		hit, err := decodeIndexKey(idx, it.Key())
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
		if limit > 0 && len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

// IndexLookupDedup is IndexLookup with duplicate (shard, pk) pairs removed,
// preserving first-seen order.
func (t *Table) IndexLookupDedup(acc Accessor, idx *Index, values []sequence.Value, limit int) ([]ShardPK, error) {
	all, err := t.IndexLookup(acc, idx, values, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	var out []ShardPK
	for _, hit := range all {
		key := hit.Shard + "\x1e" + hit.PK.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, hit)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CheckUniqueAndLock reports whether any shard already holds pk, via the
// mandatory PK index. It always walks (and thereby locks, per kv.WriteTxn's
// iterator contract) every matching entry, so a concurrent transaction
// cannot race-insert a duplicate primary key underneath it.
func (t *Table) CheckUniqueAndLock(txn kv.WriteTxn, pk sequence.Value) (bool, error) {
	idx := t.PKIndex()
	prefix := sequence.New()
	prefix.Append(pk)
	it, err := txn.Iterator(idx.CF, prefix.Bytes())
	if err != nil {
		return false, err
	}
	defer it.Close()

	found := false
	for ; it.Valid(); it.Next() {
		found = true
	}
	return found, nil
}

// SelectIndex implements §4.4's index-selection algorithm: PK beats any
// unique column index, which beats the secondary index with the most
// constrained prefix columns (tie-broken on prefix length), which beats a
// full scan (nil).
func (t *Table) SelectIndex(constrained map[int]bool) *Index {
	if constrained[t.PKColumn] {
		return t.PKIndex()
	}

	for _, idx := range t.indices {
		if idx.Unique && len(idx.Columns) == 1 && idx != t.PKIndex() && constrained[idx.Columns[0]] {
			return idx
		}
	}

	var best *Index
	bestPrefix := 0
	for _, idx := range t.indices {
		if idx == t.PKIndex() || idx.Unique {
			continue
		}
		prefix := 0
		for _, c := range idx.Columns {
			if !constrained[c] {
				break
			}
			prefix++
		}
		if prefix > 0 && prefix > bestPrefix {
			best = idx
			bestPrefix = prefix
		}
	}
	return best
}
