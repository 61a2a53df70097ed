package crypto

import (
	"errors"
	"fmt"

	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/codec"
)

// AddressPayloadLen is version byte + HASH160.
const AddressPayloadLen = 21

var ErrInvalidAddress = errors.New("invalid address")

// PublicKeyToAddress returns Base58Check(version || HASH160(pub)).
func PublicKeyToAddress(pub []byte, params *chaincfg.Params) string {
	h := Hash160(pub)

	payload := make([]byte, 0, AddressPayloadLen)
	payload = append(payload, params.AddressVersion)
	payload = append(payload, h[:]...)
	return codec.Base58CheckEncode(payload)
}

// DecodeAddress returns the HASH160 carried by a P2PKH address. The address
// is normalized first. skipChecksum reproduces the legacy decoder that did
// not verify the checksum and should only be set for compatibility.
func DecodeAddress(addr string, params *chaincfg.Params, skipChecksum bool) ([20]byte, error) {
	var h [20]byte

	payload, err := codec.Base58CheckDecode(NormalizeAddress(addr), skipChecksum)
	if err != nil {
		return h, fmt.Errorf("%w %q: %w", ErrInvalidAddress, addr, err)
	}

	if len(payload) != AddressPayloadLen {
		return h, fmt.Errorf("%w %q: payload is %d bytes, want %d", ErrInvalidAddress, addr, len(payload), AddressPayloadLen)
	}

	if payload[0] != params.AddressVersion {
		return h, fmt.Errorf("%w %q: version byte 0x%02x, want 0x%02x", ErrInvalidAddress, addr, payload[0], params.AddressVersion)
	}

	copy(h[:], payload[1:])
	return h, nil
}

// IsValidAddress reports whether addr is a checksummed P2PKH address for
// the network.
func IsValidAddress(addr string, params *chaincfg.Params) bool {
	_, err := DecodeAddress(addr, params, false)
	return err == nil
}

// IsValidAddressLenient accepts any Base58 string whose payload, ignoring
// the checksum, is exactly 21 bytes. This matches the legacy wallet check.
func IsValidAddressLenient(addr string) bool {
	payload, err := codec.Base58CheckDecode(NormalizeAddress(addr), true)
	return err == nil && len(payload) == AddressPayloadLen
}
