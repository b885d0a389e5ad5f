// Package idhash computes the deterministic 8-byte prefixes that tag program
// accounts and instructions.
package idhash

import "crypto/sha256"

// DiscriminatorSize is the length of an account or instruction discriminator.
const DiscriminatorSize = 8

// Discriminator is the leading tag of program account data and instruction data.
type Discriminator [DiscriminatorSize]byte

// AccountDiscriminator returns SHA256("account:" + name)[:8].
func AccountDiscriminator(name string) Discriminator {
	return compute("account:" + name)
}

// InstructionDiscriminator returns SHA256("global:" + name)[:8].
func InstructionDiscriminator(name string) Discriminator {
	return compute("global:" + name)
}

// Matches reports whether data starts with d.
func (d Discriminator) Matches(data []byte) bool {
	return len(data) >= DiscriminatorSize && [DiscriminatorSize]byte(data[:DiscriminatorSize]) == d
}

func compute(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}
