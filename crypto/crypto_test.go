package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ed25519"
)

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestHashes(t *testing.T) {
	cases := []struct {
		in      string
		want160 string
		want256 string
	}{
		{
			in:      "",
			want160: "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb",
			want256: "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456",
		},
		{
			in:      "abc",
			want160: "bb1be98c142444d7a56aa3981c3942a978e4dc33",
			want256: "4f8b42c22dd3729b519ba6f68d2da7cc5b2d606d05daed5ad5128cc03e6c6358",
		},
	}
	for _, c := range cases {
		got160 := Hash160([]byte(c.in))
		if !bytes.Equal(got160[:], mustDecodeHex(c.want160)) {
			t.Errorf("Hash160(%q) = %x want %s", c.in, got160, c.want160)
		}
		got256 := Hash256([]byte(c.in))
		if !bytes.Equal(got256[:], mustDecodeHex(c.want256)) {
			t.Errorf("Hash256(%q) = %x want %s", c.in, got256, c.want256)
		}

		h := NewHash160()
		h.Write([]byte(c.in))
		if !bytes.Equal(h.Sum(nil), got160[:]) {
			t.Errorf("NewHash160 disagrees with Hash160 for %q", c.in)
		}
		h2 := NewHash256()
		h2.Write([]byte(c.in))
		if !bytes.Equal(h2.Sum(nil), got256[:]) {
			t.Errorf("NewHash256 disagrees with Hash256 for %q", c.in)
		}
	}
}

func TestVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("checked message")
	sig := ed25519.Sign(priv, msg)

	cases := []struct {
		p    Provider
		msg  []byte
		sig  []byte
		pub  []byte
		want bool
	}{
		{Default, msg, sig, pub, true},
		{Provider{Ed25519}, msg, sig, pub, true},
		{Provider{Secp256k1}, msg, sig, pub, false},
		{Default, []byte("other"), sig, pub, false},
		{Default, msg, sig[:10], pub, false},
		{Provider{Ed25519}, msg, sig, pub[:5], false},
	}
	for i, c := range cases {
		if got := c.p.VerifySignature(c.msg, c.sig, c.pub); got != c.want {
			t.Errorf("case %d (%s): got %v want %v", i, c.p.Scheme, got, c.want)
		}
	}
}

func TestVerifySecp256k1(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("checked message")
	digest := sha256.Sum256(msg)
	der := ecdsa.Sign(priv, digest[:]).Serialize()
	compressed := priv.PubKey().SerializeCompressed()
	uncompressed := priv.PubKey().SerializeUncompressed()

	compact := derToCompact(der)

	cases := []struct {
		sig  []byte
		pub  []byte
		msg  []byte
		want bool
	}{
		{der, compressed, msg, true},
		{der, uncompressed, msg, true},
		{compact, compressed, msg, true},
		{der, compressed, []byte("other"), false},
		{der[:len(der)-1], compressed, msg, false},
		{der, compressed[:20], msg, false},
	}
	for i, c := range cases {
		if got := Default.VerifySignature(c.msg, c.sig, c.pub); got != c.want {
			t.Errorf("case %d: got %v want %v", i, got, c.want)
		}
	}
}

// derToCompact converts a DER ECDSA signature
// (30 len 02 rlen r 02 slen s) to 64 bytes of r||s.
func derToCompact(der []byte) []byte {
	out := make([]byte, 64)
	rlen := int(der[3])
	r := der[4 : 4+rlen]
	slen := int(der[5+rlen])
	s := der[6+rlen : 6+rlen+slen]
	r = bytes.TrimLeft(r, "\x00")
	s = bytes.TrimLeft(s, "\x00")
	copy(out[32-len(r):32], r)
	copy(out[64-len(s):], s)
	return out
}
