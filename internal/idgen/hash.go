// Package idgen generates content-addressed identifiers. Transaction ids
// use github.com/google/uuid (see dbctx); this
// package is kept for the one case a random id is the wrong tool:
// internal/compliance's Commit tags every row it finds orphaned in the
// default shard with DanglingMarker(table, pk) before reporting the
// violation, so the same (table, pk) always yields the same marker across
// repeated commit attempts and a log scraper (or a human staring at two
// failed commits in a row) can tell "still the same unresolved row" from
// "a new orphan showed up."
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts data to a base36 string of exactly length
// characters. The big-endian digits are written directly into a
// fixed-size, zero-padded buffer from the right, so the result never needs
// a separate reverse or pad pass; digits beyond the buffer's capacity (the
// most significant ones) are simply dropped, keeping the least-significant
// digits.
func EncodeBase36(data []byte, length int) string {
	if length <= 0 {
		return ""
	}

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = '0'
	}

	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	mod := new(big.Int)

	for i := length - 1; i >= 0 && num.Sign() > 0; i-- {
		num.DivMod(num, base, mod)
		buf[i] = base36Alphabet[mod.Int64()]
	}
	return string(buf)
}

// DanglingMarker returns a stable id, "dangling-" followed by a 12-character
// base36 digest, for a row written
// to the default shard because table/pk had no resolvable ownership chain
// at insert time. Two calls with the same table and pk always agree.
func DanglingMarker(table string, pk []byte) string {
	content := fmt.Sprintf("%s|%x", table, pk)
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("dangling-%s", EncodeBase36(hash[:8], 12))
}
