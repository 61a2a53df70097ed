// Package codec implements the byte-level encodings used by LanaCoin
// transactions and addresses: Base58, Base58Check, Bitcoin varints,
// script push-data and little-endian integers.
package codec

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Alphabet is the Bitcoin Base58 alphabet.
const Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ChecksumLen is the number of sha256d bytes appended by Base58Check.
const ChecksumLen = 4

var (
	ErrInvalidCharacter = errors.New("invalid base58 character")
	ErrTooShort         = errors.New("base58check payload too short")
	ErrChecksumMismatch = errors.New("base58check checksum mismatch")
)

// Base58Encode encodes data in Base58. Every leading zero byte becomes a
// leading '1'.
func Base58Encode(data []byte) string {
	return base58.Encode(data)
}

// Base58Decode decodes a Base58 string. Every leading '1' becomes a zero
// byte. The empty string decodes to an empty slice.
func Base58Decode(s string) ([]byte, error) {
	for i, r := range s {
		if r > 0x7f || strings.IndexByte(Alphabet, byte(r)) < 0 {
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidCharacter, r, i)
		}
	}

	return base58.Decode(s), nil
}

// Checksum returns the first four bytes of sha256d(payload).
func Checksum(payload []byte) [ChecksumLen]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])

	var sum [ChecksumLen]byte
	copy(sum[:], second[:ChecksumLen])
	return sum
}

// Base58CheckEncode encodes payload || checksum(payload).
func Base58CheckEncode(payload []byte) string {
	sum := Checksum(payload)

	buf := make([]byte, 0, len(payload)+ChecksumLen)
	buf = append(buf, payload...)
	buf = append(buf, sum[:]...)
	return Base58Encode(buf)
}

// Base58CheckDecode decodes s and strips the trailing checksum. When
// skipChecksum is set the checksum bytes are dropped without comparison;
// this exists only for compatibility with legacy callers.
func Base58CheckDecode(s string, skipChecksum bool) ([]byte, error) {
	decoded, err := Base58Decode(s)
	if err != nil {
		return nil, err
	}

	if len(decoded) < ChecksumLen+1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(decoded))
	}

	payload := decoded[:len(decoded)-ChecksumLen]
	if skipChecksum {
		return payload, nil
	}

	want := Checksum(payload)
	var got [ChecksumLen]byte
	copy(got[:], decoded[len(decoded)-ChecksumLen:])
	if got != want {
		return nil, ErrChecksumMismatch
	}

	return payload, nil
}
