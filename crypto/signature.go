package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ed25519"
)

// Scheme selects the signature algorithm used by a Provider.
type Scheme int

const (
	// Auto picks the scheme from the public key length:
	// 32 bytes is Ed25519, 33 or 65 bytes is secp256k1.
	Auto Scheme = iota
	Ed25519
	Secp256k1
)

func (s Scheme) String() string {
	switch s {
	case Auto:
		return "auto"
	case Ed25519:
		return "ed25519"
	case Secp256k1:
		return "secp256k1"
	}
	return "unknown"
}

// Provider hashes with Hash160 and Hash256 and verifies
// signatures with its Scheme.
type Provider struct {
	Scheme Scheme
}

// Default verifies either kind of signature.
var Default = Provider{Scheme: Auto}

func (Provider) Hash160(data []byte) [Hash160Size]byte { return Hash160(data) }

func (Provider) Hash256(data []byte) [Hash256Size]byte { return Hash256(data) }

// VerifySignature reports whether sig is a valid signature of
// msg by pubkey. Malformed keys and signatures are not valid.
func (p Provider) VerifySignature(msg, sig, pubkey []byte) bool {
	switch p.Scheme {
	case Ed25519:
		return verifyEd25519(msg, sig, pubkey)
	case Secp256k1:
		return verifySecp256k1(msg, sig, pubkey)
	case Auto:
		switch len(pubkey) {
		case ed25519.PublicKeySize:
			return verifyEd25519(msg, sig, pubkey)
		case 33, 65:
			return verifySecp256k1(msg, sig, pubkey)
		}
	}
	return false
}

func verifyEd25519(msg, sig, pubkey []byte) bool {
	if len(pubkey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubkey), msg, sig)
}

// verifySecp256k1 checks an ECDSA signature over sha256(msg).
// sig is either DER encoded or 64 bytes of r||s.
func verifySecp256k1(msg, sig, pubkey []byte) bool {
	pub, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	var s *ecdsa.Signature
	if len(sig) == 64 {
		var r, ss btcec.ModNScalar
		if r.SetByteSlice(sig[:32]) || ss.SetByteSlice(sig[32:]) {
			return false
		}
		s = ecdsa.NewSignature(&r, &ss)
	} else {
		s, err = ecdsa.ParseDERSignature(sig)
		if err != nil {
			return false
		}
	}
	digest := sha256.Sum256(msg)
	return s.Verify(digest[:], pub)
}
