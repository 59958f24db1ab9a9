package table

import (
	"fmt"

	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/sequence"
)

func (t *Table) rowKey(shardName string, pk sequence.Value) ([]byte, error) {
	return t.crypto.EncryptKey([]byte(shardName), pk.Encode())
}

func (t *Table) kinds() []sequence.Kind {
	kinds := make([]sequence.Kind, len(t.Columns))
	for i, c := range t.Columns {
		kinds[i] = c.Kind
	}
	return kinds
}

// Put writes row into shardName, encrypting its key and value under t's
// crypto.Manager. Exactly one row exists per (table, shard, pk) per §3.
func (t *Table) Put(txn kv.WriteTxn, shardName string, row sequence.Row) error {
	key, err := t.rowKey(shardName, t.pkValue(row))
	if err != nil {
		return fmt.Errorf("table %s: encrypt key: %w", t.Name, err)
	}
	value, err := t.crypto.EncryptValue(shardName, row.Encode().Bytes())
	if err != nil {
		return fmt.Errorf("table %s: encrypt value: %w", t.Name, err)
	}
	return txn.Put(t.RowsCF, key, value)
}

// Delete removes the row at (shardName, pk), if present.
func (t *Table) Delete(txn kv.WriteTxn, shardName string, pk sequence.Value) error {
	key, err := t.rowKey(shardName, pk)
	if err != nil {
		return fmt.Errorf("table %s: encrypt key: %w", t.Name, err)
	}
	return txn.Delete(t.RowsCF, key)
}

// Get returns the row at (shardName, pk) and whether it exists.
func (t *Table) Get(acc Accessor, shardName string, pk sequence.Value) (sequence.Row, bool, error) {
	key, err := t.rowKey(shardName, pk)
	if err != nil {
		return nil, false, fmt.Errorf("table %s: encrypt key: %w", t.Name, err)
	}
	ciphertext, ok, err := acc.get(t.RowsCF, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return t.decodeRow(shardName, ciphertext)
}

// MultiGet is a batched Get against a single shard.
func (t *Table) MultiGet(acc Accessor, shardName string, pks []sequence.Value) ([]sequence.Row, error) {
	keys := make([][]byte, len(pks))
	for i, pk := range pks {
		k, err := t.rowKey(shardName, pk)
		if err != nil {
			return nil, fmt.Errorf("table %s: encrypt key: %w", t.Name, err)
		}
		keys[i] = k
	}
	ciphertexts, err := acc.multiGet(t.RowsCF, keys)
	if err != nil {
		return nil, err
	}
	rows := make([]sequence.Row, len(ciphertexts))
	for i, ct := range ciphertexts {
		if ct == nil {
			continue
		}
		row, _, err := t.decodeRow(shardName, ct)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

func (t *Table) decodeRow(shardName string, ciphertext []byte) (sequence.Row, bool, error) {
	plain, err := t.crypto.DecryptValue(shardName, ciphertext)
	if err != nil {
		return nil, false, fmt.Errorf("table %s: decrypt value: %w", t.Name, err)
	}
	row, err := sequence.DecodeRow(t.kinds(), plain)
	if err != nil {
		return nil, false, fmt.Errorf("table %s: decode row: %w", t.Name, err)
	}
	return row, true, nil
}

// GetAll returns every row in every shard, for full-scan plans (§4.4's
// index-selection fallback).
func (t *Table) GetAll(acc Accessor) ([]sequence.Row, error) {
	pairs, err := t.GetAllWithShard(acc)
	if err != nil {
		return nil, err
	}
	rows := make([]sequence.Row, len(pairs))
	for i, p := range pairs {
		rows[i] = p.Row
	}
	return rows, nil
}

// ShardRow pairs a decoded row with the shard it was read from.
type ShardRow struct {
	Shard string
	Row   sequence.Row
}

// GetAllWithShard is GetAll but also reports which shard each row came
// from, for callers (CREATE INDEX backfill, EXPLAIN COMPLIANCE) that need
// the shard a full scan's rows live in without a second pass through the PK
// index.
func (t *Table) GetAllWithShard(acc Accessor) ([]ShardRow, error) {
	it, err := acc.iterator(t.RowsCF, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ShardRow
	for ; it.Valid(); it.Next() {
		shardBytes, _, err := t.crypto.DecryptKey(it.Key())
		if err != nil {
			return nil, fmt.Errorf("table %s: decrypt key: %w", t.Name, err)
		}
		row, _, err := t.decodeRow(string(shardBytes), it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, ShardRow{Shard: string(shardBytes), Row: row})
	}
	return out, nil
}

// GetShard returns every row this table has in shardName, via a single
// prefix scan seeked to the shard's encrypted prefix.
func (t *Table) GetShard(acc Accessor, shardName string) ([]sequence.Row, error) {
	prefix, err := t.crypto.SeekPrefix([]byte(shardName))
	if err != nil {
		return nil, fmt.Errorf("table %s: seek prefix: %w", t.Name, err)
	}
	it, err := acc.iterator(t.RowsCF, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []sequence.Row
	for ; it.Valid(); it.Next() {
		row, _, err := t.decodeRow(shardName, it.Value())
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
