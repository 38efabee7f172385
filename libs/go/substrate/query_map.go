package substrate

import (
	"bytes"
	"context"
	"fmt"
	"iter"
)

// DefaultPageSize is the largest page state_getKeysPaged accepts.
const DefaultPageSize = 1000

// MapQuery selects entries of a (Identity u16, Blake2_128Concat AccountId32)
// double map.
type MapQuery struct {
	Module string
	Item   string
	// First scopes the scan to one first key; nil scans the whole map.
	First *uint16
	// PageSize defaults to DefaultPageSize.
	PageSize int
}

// RawEntry is one (key, value) pair as yielded by QueryMap. The shapes are
// loosely typed on purpose; consumers decide what they recognize.
//
// Scoped scans yield Key []byte (the account id) and Value uint64.
// Unscoped scans yield Key []any{first, []any{[]any{b0, ..., b31}}} and
// Value map[string]any{"key": first, "value": amount}.
// Undecodable pieces are left nil.
type RawEntry struct {
	StorageKey string
	Key        any
	Value      any
}

type storageChangeSet struct {
	Block   string       `json:"block"`
	Changes [][2]*string `json:"changes"`
}

// QueryMap iterates the map at block `at`, page by page. A transport error is
// yielded once and ends the sequence.
func (c *Conn) QueryMap(ctx context.Context, q MapQuery, at string) iter.Seq2[RawEntry, error] {
	return func(yield func(RawEntry, error) bool) {
		prefix := StoragePrefix(q.Module, q.Item)
		if q.First != nil {
			prefix = append(prefix, EncodeU16(*q.First)...)
		}
		pageSize := q.PageSize
		if pageSize <= 0 {
			pageSize = DefaultPageSize
		}
		prefixHex := EncodeHex(prefix)

		var startKey any
		for {
			var keys []string
			if err := c.Call(ctx, "state_getKeysPaged", []any{prefixHex, pageSize, startKey, at}, &keys); err != nil {
				yield(RawEntry{}, err)
				return
			}
			if len(keys) == 0 {
				return
			}

			values, err := c.queryStorageAt(ctx, keys, at)
			if err != nil {
				yield(RawEntry{}, err)
				return
			}

			for _, k := range keys {
				entry := RawEntry{StorageKey: k}
				if raw, err := DecodeHex(k); err == nil && bytes.HasPrefix(raw, prefix) {
					entry.Key = decodeMapKey(raw[len(prefix):], q.First == nil)
				}
				entry.Value = decodeMapValue(values[k], q.First == nil, entry.Key)
				if !yield(entry, nil) {
					return
				}
			}

			if len(keys) < pageSize {
				return
			}
			startKey = keys[len(keys)-1]
		}
	}
}

func (c *Conn) queryStorageAt(ctx context.Context, keys []string, at string) (map[string]*string, error) {
	var sets []storageChangeSet
	if err := c.Call(ctx, "state_queryStorageAt", []any{keys, at}, &sets); err != nil {
		return nil, err
	}
	values := make(map[string]*string, len(keys))
	for _, set := range sets {
		for _, change := range set.Changes {
			if change[0] == nil {
				continue
			}
			values[*change[0]] = change[1]
		}
	}
	return values, nil
}

// decodeMapKey turns the hashed key suffix into the raw shapes described on
// RawEntry. Lengths that do not match the map layout decode to nil.
func decodeMapKey(suffix []byte, unscoped bool) any {
	if !unscoped {
		if len(suffix) != hashedAcctLen {
			return nil
		}
		return append([]byte(nil), suffix[blake2_128Len:]...)
	}

	if len(suffix) != unscopedSuffix {
		return nil
	}
	first, _ := DecodeU16(suffix[:u16Len])
	account := suffix[u16Len+blake2_128Len:]
	ints := make([]any, len(account))
	for i, b := range account {
		ints[i] = int(b)
	}
	return []any{int(first), []any{ints}}
}

func decodeMapValue(hexValue *string, unscoped bool, key any) any {
	// ValueQuery storage: absent means the type default.
	var amount uint64
	if hexValue != nil {
		raw, err := DecodeHex(*hexValue)
		if err != nil {
			return nil
		}
		if amount, err = DecodeU64(raw); err != nil {
			return nil
		}
	}
	if !unscoped {
		return amount
	}

	tuple, ok := key.([]any)
	if !ok || len(tuple) == 0 {
		return map[string]any{"value": amount}
	}
	return map[string]any{"key": tuple[0], "value": amount}
}

// Describe is a short label for logs.
func (q MapQuery) Describe() string {
	if q.First == nil {
		return fmt.Sprintf("%s.%s[*]", q.Module, q.Item)
	}
	return fmt.Sprintf("%s.%s[%d]", q.Module, q.Item, *q.First)
}
