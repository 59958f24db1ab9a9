// Package crypto implements the per-shard encryption scheme of §4.2: keys
// are AEAD-sealed independently so that the shard portion of a key can be
// recovered — for the ordered-KV prefix extractor — without decrypting the
// primary key; values are sealed with a per-shard symmetric key generated
// lazily on first write.
//
// Grounded on original_source/pelton/sql/rocksdb/{encryption_on,encryption_off}.cc:
// the reference implementation picks one of two translation units at
// compile time depending on a build flag. Go has no equivalent to
// conditionally-compiled translation units without build tags splitting
// otherwise-identical Go code, so both variants are ordinary Manager
// implementations selected at Database-construction time instead.
package crypto

// Manager encrypts and decrypts shard/key/value material. All
// implementations must agree that ciphertext length is never load-bearing
// elsewhere in the system (§4.2) — NoopManager's identity transform is a
// valid Manager.
type Manager interface {
	// EncryptKey seals (shardBytes, pkBytes) into a single key blob whose
	// first component, once unsealed, recovers shardBytes without touching
	// pkBytes — see KEY's layout in §4.2.
	EncryptKey(shardBytes, pkBytes []byte) ([]byte, error)

	// DecryptKey is the inverse of EncryptKey.
	DecryptKey(key []byte) (shardBytes, pkBytes []byte, err error)

	// EncryptValue seals a row payload under shardName's per-shard key.
	EncryptValue(shardName string, value []byte) ([]byte, error)

	// DecryptValue is the inverse of EncryptValue.
	DecryptValue(shardName string, ciphertext []byte) ([]byte, error)

	// SeekPrefix encrypts only the shard portion of a key, for use as an
	// ordered-KV prefix-scan seek key — no PK component is involved.
	SeekPrefix(shardBytes []byte) ([]byte, error)

	// ShardOfKey extracts the shard-cipher prefix from an encrypted key
	// without fully decrypting it, for the KV store's prefix extractor.
	ShardOfKey(key []byte) ([]byte, error)
}
