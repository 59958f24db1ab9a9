package crypto

import (
	"encoding/binary"
	"fmt"
)

// NoopManager is the encryption-off Manager (original_source/pelton/sql/rocksdb/encryption_off.cc):
// every Encrypt* and Decrypt* is the identity, so the benchmark/test harness
// can run without the overhead of AEAD. It still has to honor the KEY
// layout (shard||pk||length) so the rest of the system never has to know
// whether encryption is enabled.
type NoopManager struct{}

// NewNoopManager returns the identity Manager.
func NewNoopManager() *NoopManager { return &NoopManager{} }

func (NoopManager) EncryptKey(shardBytes, pkBytes []byte) ([]byte, error) {
	lenBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenBuf, uint64(len(shardBytes)))
	out := make([]byte, 0, len(shardBytes)+len(pkBytes)+8)
	out = append(out, shardBytes...)
	out = append(out, pkBytes...)
	out = append(out, lenBuf...)
	return out, nil
}

func (NoopManager) DecryptKey(key []byte) ([]byte, []byte, error) {
	if len(key) < 8 {
		return nil, nil, fmt.Errorf("crypto: key too short")
	}
	shardLen := binary.LittleEndian.Uint64(key[len(key)-8:])
	if shardLen > uint64(len(key)-8) {
		return nil, nil, fmt.Errorf("crypto: corrupt key length prefix")
	}
	return key[:shardLen], key[shardLen : len(key)-8], nil
}

func (NoopManager) EncryptValue(_ string, value []byte) ([]byte, error) { return value, nil }
func (NoopManager) DecryptValue(_ string, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}

func (NoopManager) SeekPrefix(shardBytes []byte) ([]byte, error) { return shardBytes, nil }

func (NoopManager) ShardOfKey(key []byte) ([]byte, error) {
	if len(key) < 8 {
		return nil, fmt.Errorf("crypto: key too short")
	}
	shardLen := binary.LittleEndian.Uint64(key[len(key)-8:])
	if shardLen > uint64(len(key)-8) {
		return nil, fmt.Errorf("crypto: corrupt key length prefix")
	}
	return key[:shardLen], nil
}

var _ Manager = NoopManager{}
