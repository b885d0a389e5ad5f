package solana

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of a Solana account address in bytes.
const PublicKeyLength = 32

// ErrInvalidPublicKey is returned when an address is not a 32-byte base58 value.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a Solana account address.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	if s == "" {
		return PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKeyFromBytes(decoded)
}

// MustPublicKey is like ParsePublicKey but panics on error.
// Intended for constants and tests.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLength {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// NewRandomPublicKey returns a random address. Used to allocate fresh vault
// and token account addresses in the simulated ledger.
func NewRandomPublicKey() (PublicKey, error) {
	var pk PublicKey
	if _, err := rand.Read(pk[:]); err != nil {
		return pk, fmt.Errorf("read random: %w", err)
	}
	return pk, nil
}

// String returns the base58 encoding.
func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// Bytes returns a copy of the raw key bytes.
func (k PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeyLength)
	copy(b, k[:])
	return b
}

// IsZero reports whether k is the all-zero key.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	pk, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = pk
	return nil
}
