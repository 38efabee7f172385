package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountInts(b byte) []any {
	out := make([]any, 32)
	for i := range out {
		out[i] = int(b)
	}
	return out
}

func TestClassifyKey(t *testing.T) {
	raw := make([]byte, 32)

	tests := []struct {
		name  string
		in    any
		shape keyShape
	}{
		{name: "bytes", in: raw, shape: keyBytes},
		{name: "nested tuple", in: []any{18, []any{accountInts(7)}}, shape: keyNested},
		{name: "nested tuple with json numbers", in: []any{json.Number("18"), []any{[]any{json.Number("1"), json.Number("255")}}}, shape: keyNested},
		{name: "nil", in: nil, shape: keySkip},
		{name: "int", in: 18, shape: keySkip},
		{name: "short tuple", in: []any{18}, shape: keySkip},
		{name: "second element not a tuple", in: []any{18, "abc"}, shape: keySkip},
		{name: "wrapper with two elements", in: []any{18, []any{accountInts(1), accountInts(2)}}, shape: keySkip},
		{name: "byte out of range", in: []any{18, []any{[]any{1, 256}}}, shape: keySkip},
		{name: "non numeric byte", in: []any{18, []any{[]any{"x"}}}, shape: keySkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyKey(tt.in)
			assert.Equal(t, tt.shape, got.shape)
			if tt.shape == keySkip {
				assert.NotEmpty(t, got.reason)
			}
		})
	}
}

func TestClassifyKey_FlattensNestedBytes(t *testing.T) {
	got := classifyKey([]any{3, []any{[]any{0, 1, 254, 255}}})
	require.Equal(t, keyNested, got.shape)
	assert.Equal(t, []byte{0, 1, 254, 255}, got.account)
}

func TestDecodeSubnetValue(t *testing.T) {
	netuid, amount, err := decodeSubnetValue(map[string]any{"key": 18, "value": uint64(500)})
	require.NoError(t, err)
	assert.Equal(t, uint16(18), netuid)
	assert.Equal(t, uint64(500), amount)

	skipped := []any{
		nil,
		uint64(5),
		map[string]any{"value": uint64(5)},
		map[string]any{"key": 1},
		map[string]any{"key": 1, "value": uint64(0)},
		map[string]any{"key": 1, "value": -4},
		map[string]any{"key": 70000, "value": uint64(5)},
		map[string]any{"key": 1, "value": "lots"},
	}
	for _, raw := range skipped {
		_, _, err := decodeSubnetValue(raw)
		assert.ErrorIs(t, err, ErrDecodeSkipped, "raw=%v", raw)
	}
}

func TestDecodeAmount(t *testing.T) {
	amount, err := decodeAmount(uint64(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), amount)

	amount, err = decodeAmount(map[string]any{"value": 12})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), amount)

	_, err = decodeAmount(nil)
	assert.ErrorIs(t, err, ErrDecodeSkipped)
	_, err = decodeAmount(map[string]any{})
	assert.ErrorIs(t, err, ErrDecodeSkipped)
}
