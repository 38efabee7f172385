package substrate

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

const (
	prefixLen      = 32
	blake2_128Len  = 16
	u16Len         = 2
	hashedAcctLen  = blake2_128Len + AccountIDLen
	unscopedSuffix = u16Len + hashedAcctLen
)

// Twox128 is the storage hasher used for pallet and item names.
func Twox128(data []byte) []byte {
	out := make([]byte, 0, 16)
	for seed := uint64(0); seed < 2; seed++ {
		d := xxhash.NewWithSeed(seed)
		_, _ = d.Write(data)
		out = binary.LittleEndian.AppendUint64(out, d.Sum64())
	}
	return out
}

// Blake2_128Concat hashes data and appends the preimage.
func Blake2_128Concat(data []byte) []byte {
	h, _ := blake2b.New(blake2_128Len, nil)
	_, _ = h.Write(data)
	return append(h.Sum(nil), data...)
}

// StoragePrefix is twox128(module) ++ twox128(item).
func StoragePrefix(module, item string) []byte {
	return append(Twox128([]byte(module)), Twox128([]byte(item))...)
}

// U16AccountKey builds the full storage key of a
// (Identity u16, Blake2_128Concat AccountId32) double map entry.
func U16AccountKey(module, item string, first uint16, account []byte) []byte {
	key := StoragePrefix(module, item)
	key = append(key, EncodeU16(first)...)
	return append(key, Blake2_128Concat(account)...)
}
