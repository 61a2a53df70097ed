package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/codec"
)

const (
	PrivateKeyLen          = 32
	PubKeyCompressedLen    = 33
	PubKeyUncompressedLen  = 65
	compressedFlag         = 0x01
	pubKeyEvenPrefix       = 0x02
	pubKeyOddPrefix        = 0x03
	pubKeyUncompressedFlag = 0x04
)

var (
	ErrInvalidPrivateKey  = errors.New("invalid private key")
	ErrInvalidWIF         = errors.New("invalid WIF")
	ErrKeyAddressMismatch = errors.New("private key does not match sender address")
)

// PrivateKey is a secp256k1 scalar in [1, N-1]. It is immutable once built.
type PrivateKey struct {
	d *big.Int

	// compressed records the WIF compression flag, if the key came from WIF.
	compressed bool
}

// PrivateKeyFromBytes creates a private key from a 32-byte big-endian scalar.
func PrivateKeyFromBytes(keyBytes []byte) (*PrivateKey, error) {
	if len(keyBytes) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeyLen, len(keyBytes))
	}

	d := new(big.Int).SetBytes(keyBytes)
	if d.Sign() == 0 || d.Cmp(curveN) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidPrivateKey)
	}

	return &PrivateKey{d: d, compressed: true}, nil
}

// PrivateKeyFromHex creates a private key from 64 hex characters.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := codec.DecodeHex(normalize(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return PrivateKeyFromBytes(b)
}

// GeneratePrivateKey returns a random key from crypto/rand.
func GeneratePrivateKey() (*PrivateKey, error) {
	var buf [PrivateKeyLen]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, fmt.Errorf("reading entropy: %w", err)
		}

		key, err := PrivateKeyFromBytes(buf[:])
		if err == nil {
			return key, nil
		}
	}
}

// ParsePrivateKeyWIF parses a WIF-encoded private key for the given network.
// WIF format: version || key (32 bytes) || [0x01 compression flag] || checksum
func ParsePrivateKeyWIF(wif string, params *chaincfg.Params) (*PrivateKey, error) {
	payload, err := codec.Base58CheckDecode(NormalizeWIF(wif), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWIF, err)
	}

	compressed := false
	switch len(payload) {
	case 1 + PrivateKeyLen:
	case 1 + PrivateKeyLen + 1:
		if payload[len(payload)-1] != compressedFlag {
			return nil, fmt.Errorf("%w: bad compression flag 0x%02x", ErrInvalidWIF, payload[len(payload)-1])
		}
		compressed = true
	default:
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidWIF, len(payload))
	}

	if payload[0] != params.WIFVersion {
		return nil, fmt.Errorf("%w: version byte 0x%02x, want 0x%02x", ErrInvalidWIF, payload[0], params.WIFVersion)
	}

	key, err := PrivateKeyFromBytes(payload[1 : 1+PrivateKeyLen])
	if err != nil {
		return nil, err
	}
	key.compressed = compressed

	return key, nil
}

// EncodeWIF encodes the key in Wallet Import Format.
func (k *PrivateKey) EncodeWIF(compressed bool, params *chaincfg.Params) string {
	payload := make([]byte, 0, 2+PrivateKeyLen)
	payload = append(payload, params.WIFVersion)
	payload = append(payload, k.Bytes()...)
	if compressed {
		payload = append(payload, compressedFlag)
	}

	return codec.Base58CheckEncode(payload)
}

// Bytes returns the 32-byte big-endian scalar.
func (k *PrivateKey) Bytes() []byte {
	out := make([]byte, PrivateKeyLen)
	return k.d.FillBytes(out)
}

// Compressed reports the WIF compression flag.
func (k *PrivateKey) Compressed() bool { return k.compressed }

// PublicKey returns d·G.
func (k *PrivateKey) PublicKey() Point {
	return ScalarBaseMult(k.d)
}

// PublicKeyCompressed returns 0x02/0x03 (by parity of y) || x.
func (k *PrivateKey) PublicKeyCompressed() [PubKeyCompressedLen]byte {
	return SerializeCompressed(k.PublicKey())
}

// PublicKeyUncompressed returns 0x04 || x || y.
func (k *PrivateKey) PublicKeyUncompressed() [PubKeyUncompressedLen]byte {
	return SerializeUncompressed(k.PublicKey())
}

// SerializeCompressed encodes a public key point in 33 bytes.
func SerializeCompressed(p Point) [PubKeyCompressedLen]byte {
	var out [PubKeyCompressedLen]byte
	out[0] = pubKeyEvenPrefix
	if p.y.Bit(0) == 1 {
		out[0] = pubKeyOddPrefix
	}
	p.x.FillBytes(out[1:])
	return out
}

// SerializeUncompressed encodes a public key point in 65 bytes.
func SerializeUncompressed(p Point) [PubKeyUncompressedLen]byte {
	var out [PubKeyUncompressedLen]byte
	out[0] = pubKeyUncompressedFlag
	p.x.FillBytes(out[1:33])
	p.y.FillBytes(out[33:])
	return out
}

// SelectSigningKey returns the public key encoding (compressed first, then
// uncompressed) whose P2PKH address equals senderAddress.
func SelectSigningKey(k *PrivateKey, senderAddress string, params *chaincfg.Params) ([]byte, error) {
	sender := NormalizeAddress(senderAddress)

	compressed := k.PublicKeyCompressed()
	if PublicKeyToAddress(compressed[:], params) == sender {
		return compressed[:], nil
	}

	uncompressed := k.PublicKeyUncompressed()
	if PublicKeyToAddress(uncompressed[:], params) == sender {
		return uncompressed[:], nil
	}

	return nil, ErrKeyAddressMismatch
}
