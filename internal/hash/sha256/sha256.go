// Package sha256 digests archived quote pages so an unchanged page is not
// stored twice.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix tags every digest with its algorithm.
const Prefix = "sha256:"

// Hasher implements quotes.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() Hasher {
	return Hasher{}
}

// Hash returns the tagged hex digest of a page body, e.g. "sha256:b94d...".
func (Hasher) Hash(body []byte) string {
	sum := sha256.Sum256(body)
	return Prefix + hex.EncodeToString(sum[:])
}
