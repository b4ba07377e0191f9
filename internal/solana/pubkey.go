package solana

import (
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of an ed25519 public key.
const PublicKeyLength = 32

// ErrInvalidPublicKey is returned when a string is not a base58 encoded 32-byte key.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a decoded Solana address.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey

	s = strings.TrimSpace(s)
	if s == "" {
		return pk, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}

	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(decoded) != PublicKeyLength {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(decoded))
	}

	copy(pk[:], decoded)
	return pk, nil
}

// ParseWalletKey decodes a wallet address and requires it to lie on the ed25519 curve.
// Program-derived addresses are off-curve and cannot sign, so they are rejected.
func ParseWalletKey(s string) (PublicKey, error) {
	pk, err := ParsePublicKey(s)
	if err != nil {
		return pk, err
	}
	if !pk.IsOnCurve() {
		return pk, fmt.Errorf("%w: not on curve", ErrInvalidPublicKey)
	}
	return pk, nil
}

// IsOnCurve reports whether the key is a valid compressed ed25519 point.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// String returns the base58 encoding.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// ShortAddress renders s as "<first head>...<last tail>" when it is long enough to shorten.
func ShortAddress(s string, head, tail int) string {
	if s == "" {
		return ""
	}
	if len(s) <= head+tail+3 {
		return s
	}
	return s[:head] + "..." + s[len(s)-tail:]
}
