// Package crypto provides the hash and signature primitives the
// VM consumes: Hash160, Hash256 and signature verification over
// Ed25519 and secp256k1 keys.
package crypto

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/ripemd160"
)

const (
	Hash160Size = ripemd160.Size
	Hash256Size = sha256.Size
)

// NewHash160 returns a hash.Hash computing ripemd160(sha256(data)).
func NewHash160() hash.Hash {
	return &nested{inner: sha256.New(), outer: ripemd160.New(), size: Hash160Size}
}

// NewHash256 returns a hash.Hash computing sha256(sha256(data)).
func NewHash256() hash.Hash {
	return &nested{inner: sha256.New(), outer: sha256.New(), size: Hash256Size}
}

// nested applies outer to the digest of inner.
type nested struct {
	inner, outer hash.Hash
	size         int
}

func (d *nested) Reset()         { d.inner.Reset() }
func (d *nested) Size() int      { return d.size }
func (d *nested) BlockSize() int { return d.inner.BlockSize() }

func (d *nested) Write(p []byte) (int, error) {
	return d.inner.Write(p)
}

func (d *nested) Sum(in []byte) []byte {
	d.outer.Reset()
	d.outer.Write(d.inner.Sum(nil))
	return d.outer.Sum(in)
}

// Hash160 returns ripemd160(sha256(data)).
func Hash160(data []byte) [Hash160Size]byte {
	var sum [Hash160Size]byte
	h := NewHash160()
	h.Write(data)
	h.Sum(sum[:0])
	return sum
}

// Hash256 returns sha256(sha256(data)).
func Hash256(data []byte) [Hash256Size]byte {
	inner := sha256.Sum256(data)
	return sha256.Sum256(inner[:])
}
