package substrate

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeHex accepts "0x"-prefixed or bare hex.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

// EncodeHex renders b the way the node expects it.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeU16 reads a SCALE little-endian u16.
func DecodeU16(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("scale u16: want 2 bytes, got %d", len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// DecodeU64 reads a SCALE little-endian u64.
func DecodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("scale u64: want 8 bytes, got %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// EncodeU16 writes a SCALE little-endian u16.
func EncodeU16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

// EncodeU64 writes a SCALE little-endian u64.
func EncodeU64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
