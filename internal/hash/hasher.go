// Package hash computes the content digest anchored to the ledger.
//
// The digest is the authenticity primitive for the whole system: a credential
// is verified by recomputing the digest of uploaded bytes and asking the
// ledger whether that digest was anchored under the credential ID. Collision
// resistance is therefore a correctness requirement, not an optimization.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces a deterministic, fixed-length hex digest of document bytes.
type Hasher interface {
	Hash(data []byte) string
}

// SHA256 is the default content hasher.
type SHA256 struct{}

// NewSHA256 returns the default SHA-256 content hasher.
func NewSHA256() SHA256 {
	return SHA256{}
}

// Hash returns the lowercase hex SHA-256 digest of data.
func (SHA256) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
