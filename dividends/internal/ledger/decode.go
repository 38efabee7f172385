package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/rafaelCarinha/tao-dividends/libs/go/numbers"
)

// ErrDecodeSkipped marks a raw entry the decoder does not recognize.
// It is logged and never returned to callers.
var ErrDecodeSkipped = errors.New("ledger entry skipped")

type keyShape int

const (
	keySkip keyShape = iota
	// keyBytes: the account id arrives as raw bytes.
	keyBytes
	// keyNested: (first, ((b0, ..., b31),)) as emitted by unscoped scans.
	keyNested
)

type rawKey struct {
	shape   keyShape
	account []byte
	reason  string
}

func classifyKey(raw any) rawKey {
	switch k := raw.(type) {
	case []byte:
		return rawKey{shape: keyBytes, account: k}
	case []any:
		if len(k) < 2 {
			return rawKey{reason: fmt.Sprintf("tuple of %d elements", len(k))}
		}
		wrapper, ok := k[1].([]any)
		if !ok || len(wrapper) != 1 {
			return rawKey{reason: fmt.Sprintf("second element is %T, want one-element tuple", k[1])}
		}
		seq, ok := wrapper[0].([]any)
		if !ok {
			return rawKey{reason: fmt.Sprintf("wrapped element is %T, want sequence", wrapper[0])}
		}
		account, err := flattenBytes(seq)
		if err != nil {
			return rawKey{reason: err.Error()}
		}
		return rawKey{shape: keyNested, account: account}
	case nil:
		return rawKey{reason: "missing key"}
	default:
		return rawKey{reason: fmt.Sprintf("unsupported key type %T", raw)}
	}
}

func flattenBytes(seq []any) ([]byte, error) {
	out := make([]byte, len(seq))
	for i, v := range seq {
		n, err := numbers.ExtractInt(v)
		if err != nil {
			return nil, fmt.Errorf("byte %d: %w", i, err)
		}
		if n < 0 || n > math.MaxUint8 {
			return nil, fmt.Errorf("byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	return out, nil
}

// decodeAmount reads the dividend of a scoped scan. Both a bare number and
// a {"value": n} record are accepted.
func decodeAmount(raw any) (uint64, error) {
	if m, ok := raw.(map[string]any); ok {
		v, ok := m["value"]
		if !ok {
			return 0, fmt.Errorf("%w: value field missing", ErrDecodeSkipped)
		}
		raw = v
	}
	if raw == nil {
		return 0, fmt.Errorf("%w: missing value", ErrDecodeSkipped)
	}
	amount, err := numbers.ExtractUint(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecodeSkipped, err)
	}
	return amount, nil
}

// decodeSubnetValue reads the {"key": netuid, "value": dividend} record of
// an unscoped scan. Zero dividends are skipped along with malformed records.
func decodeSubnetValue(raw any) (uint16, uint64, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return 0, 0, fmt.Errorf("%w: value is %T, want record", ErrDecodeSkipped, raw)
	}
	rawNetuid, hasKey := m["key"]
	rawAmount, hasValue := m["value"]
	if !hasKey || !hasValue || rawNetuid == nil || rawAmount == nil {
		return 0, 0, fmt.Errorf("%w: key or value field missing", ErrDecodeSkipped)
	}

	netuid, err := numbers.ExtractInt(rawNetuid)
	if err != nil || netuid < 0 || netuid > math.MaxUint16 {
		return 0, 0, fmt.Errorf("%w: bad netuid %v", ErrDecodeSkipped, rawNetuid)
	}
	amount, err := numbers.ExtractUint(rawAmount)
	if err != nil || amount == 0 {
		return 0, 0, fmt.Errorf("%w: dividend %v is not a positive number", ErrDecodeSkipped, rawAmount)
	}
	return uint16(netuid), amount, nil
}
