// Package crypto implements secp256k1 key handling, P2PKH addresses and
// deterministic ECDSA signing for LanaCoin transparent inputs.
//
// Key formats:
//   - Private keys: WIF (Wallet Import Format), hex or raw 32 bytes
//   - Public keys: compressed 33-byte (0x02/0x03 prefix + x) or
//     uncompressed 65-byte (0x04 + x + y)
//   - Signatures: DER-encoded (r, s) with low S
//
// Curve arithmetic is done in math/big. Signatures are cross-checked with
// the decred secp256k1 implementation.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
)

// Sha256 returns SHA-256(b).
func Sha256(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Sha256d returns SHA-256(SHA-256(b)).
func Sha256d(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Ripemd160 returns RIPEMD-160(b).
func Ripemd160(b []byte) [20]byte {
	h := ripemd160.New()
	h.Write(b)

	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hash160 returns RIPEMD-160(SHA-256(b)).
func Hash160(b []byte) [20]byte {
	sum := sha256.Sum256(b)
	return Ripemd160(sum[:])
}
