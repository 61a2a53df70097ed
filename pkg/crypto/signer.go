package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SigHashAll commits to every input and output.
const SigHashAll = 0x01

// maxNonceAttempts bounds the r == 0 / s == 0 retry loop. Each retry has
// probability ~2⁻²⁵⁶ of being needed.
const maxNonceAttempts = 64

type signConfig struct {
	rfc6979 bool
}

// SignOption configures SignECDSA.
type SignOption func(*signConfig)

// WithNonceRFC6979 derives nonces with RFC 6979 (HMAC-SHA256) instead of
// the legacy SHA-256(key || hash) scheme. Signatures differ from those
// produced by the legacy wallet but remain valid.
func WithNonceRFC6979() SignOption {
	return func(c *signConfig) { c.rfc6979 = true }
}

// SignECDSA signs a 32-byte message hash and returns the DER encoding of
// (r, s) with s ≤ N/2. The sighash type byte is not appended.
//
// The default nonce is k = (SHA-256(d || hash) mod (N-1)) + 1; if r or s
// comes out as zero, k is incremented mod N and signing retried.
func SignECDSA(k *PrivateKey, hash [32]byte, opts ...SignOption) ([]byte, error) {
	var cfg signConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r, s, err := sign(k, hash, cfg)
	if err != nil {
		return nil, err
	}

	return EncodeDER(r, s), nil
}

func sign(key *PrivateKey, hash [32]byte, cfg signConfig) (*big.Int, *big.Int, error) {
	z := new(big.Int).SetBytes(hash[:])
	priv := key.Bytes()

	var nonce *big.Int
	if cfg.rfc6979 {
		nonce = rfc6979Nonce(priv, hash, 0)
	} else {
		nonce = legacyNonce(priv, hash)
	}

	for attempt := 0; attempt < maxNonceAttempts; attempt++ {
		if attempt > 0 {
			if cfg.rfc6979 {
				nonce = rfc6979Nonce(priv, hash, uint32(attempt))
			} else {
				nonce.Add(nonce, bigOne)
				nonce.Mod(nonce, curveN)
				if nonce.Sign() == 0 {
					nonce.SetInt64(1)
				}
			}
		}

		point := ScalarBaseMult(nonce)
		if point.IsInfinity() {
			continue
		}

		r := new(big.Int).Mod(point.x, curveN)
		if r.Sign() == 0 {
			continue
		}

		kInv, err := ModInverse(nonce, curveN)
		if err != nil {
			continue
		}

		s := new(big.Int).Mul(r, key.d)
		s.Add(s, z)
		s.Mul(s, kInv)
		s.Mod(s, curveN)
		if s.Sign() == 0 {
			continue
		}

		if s.Cmp(curveHalfN) > 0 {
			s.Sub(curveN, s)
		}

		return r, s, nil
	}

	return nil, nil, errors.New("unable to find a valid nonce")
}

func legacyNonce(priv []byte, hash [32]byte) *big.Int {
	h := sha256.New()
	h.Write(priv)
	h.Write(hash[:])

	nMinusOne := new(big.Int).Sub(curveN, bigOne)
	k := new(big.Int).SetBytes(h.Sum(nil))
	k.Mod(k, nMinusOne)
	return k.Add(k, bigOne)
}

func rfc6979Nonce(priv []byte, hash [32]byte, extraIterations uint32) *big.Int {
	k := secp256k1.NonceRFC6979(priv, hash[:], nil, nil, extraIterations)
	b := k.Bytes()
	k.Zero()
	return new(big.Int).SetBytes(b[:])
}

// EncodeDER returns SEQUENCE { INTEGER r, INTEGER s } with minimal-length
// integers, each sign-padded with 0x00 when its high bit is set.
func EncodeDER(r, s *big.Int) []byte {
	rb := derInteger(r)
	sb := derInteger(s)

	out := make([]byte, 0, 6+len(rb)+len(sb))
	out = append(out, 0x30, byte(4+len(rb)+len(sb)))
	out = append(out, 0x02, byte(len(rb)))
	out = append(out, rb...)
	out = append(out, 0x02, byte(len(sb)))
	out = append(out, sb...)
	return out
}

func derInteger(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		return []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		return append([]byte{0x00}, b...)
	}
	return b
}

// DecodeDER parses a strict DER signature into (r, s).
func DecodeDER(sig []byte) (*big.Int, *big.Int, error) {
	if len(sig) < 8 || sig[0] != 0x30 || int(sig[1]) != len(sig)-2 {
		return nil, nil, errors.New("malformed DER sequence")
	}

	rest := sig[2:]
	var ints [2]*big.Int
	for i := range ints {
		if len(rest) < 2 || rest[0] != 0x02 {
			return nil, nil, fmt.Errorf("malformed DER integer %d", i)
		}
		n := int(rest[1])
		if n == 0 || len(rest) < 2+n {
			return nil, nil, fmt.Errorf("bad DER integer %d length", i)
		}
		ints[i] = new(big.Int).SetBytes(rest[2 : 2+n])
		rest = rest[2+n:]
	}

	if len(rest) != 0 {
		return nil, nil, errors.New("trailing bytes after DER signature")
	}

	return ints[0], ints[1], nil
}

// IsLowS reports whether s ≤ N/2.
func IsLowS(s *big.Int) bool {
	return s.Cmp(curveHalfN) <= 0
}

// VerifySignature verifies a DER signature over hash against a compressed
// or uncompressed public key.
func VerifySignature(pubKey []byte, hash [32]byte, signature []byte) bool {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}

	return sig.Verify(hash[:], pub)
}
