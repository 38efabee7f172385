package substrate

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// BittensorSS58Prefix is the generic Substrate network prefix used by Finney.
const BittensorSS58Prefix uint16 = 42

// AccountIDLen is the size of an sr25519/ed25519 AccountId32.
const AccountIDLen = 32

var ss58Pre = []byte("SS58PRE")

var ErrInvalidAccountID = errors.New("substrate: account id must be 32 bytes")

// EncodeSS58 renders a 32-byte account id as an SS58 address.
func EncodeSS58(account []byte, prefix uint16) (string, error) {
	if len(account) != AccountIDLen {
		return "", fmt.Errorf("%w: got %d", ErrInvalidAccountID, len(account))
	}
	if prefix > 16383 {
		return "", fmt.Errorf("substrate: ss58 prefix %d out of range", prefix)
	}

	var payload []byte
	if prefix < 64 {
		payload = append(payload, byte(prefix))
	} else {
		payload = append(payload,
			byte((prefix&0x00fc)>>2)|0x40,
			byte(prefix>>8)|byte((prefix&0x0003)<<6),
		)
	}
	payload = append(payload, account...)

	checksum := blake2b.Sum512(append(append([]byte{}, ss58Pre...), payload...))
	return base58.Encode(append(payload, checksum[:2]...)), nil
}
