package tx

import (
	"errors"
	"fmt"

	"github.com/suffix-labs/lana-tx/pkg/codec"
)

// Script opcodes used by P2PKH.
const (
	OpDup         = 0x76
	OpHash160     = 0xa9
	OpEqualVerify = 0x88
	OpCheckSig    = 0xac

	p2pkhScriptLen = 25
)

var ErrNotP2PKH = errors.New("script is not P2PKH")

// P2PKHScript returns OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKHScript(hash160 [20]byte) []byte {
	script := make([]byte, 0, p2pkhScriptLen)
	script = append(script, OpDup, OpHash160, 20)
	script = append(script, hash160[:]...)
	return append(script, OpEqualVerify, OpCheckSig)
}

// ExtractP2PKHHash returns the key hash locked by a P2PKH scriptPubKey.
func ExtractP2PKHHash(script []byte) ([20]byte, error) {
	var h [20]byte
	if len(script) != p2pkhScriptLen ||
		script[0] != OpDup || script[1] != OpHash160 || script[2] != 20 ||
		script[23] != OpEqualVerify || script[24] != OpCheckSig {
		return h, ErrNotP2PKH
	}
	copy(h[:], script[3:23])
	return h, nil
}

// P2PKHScriptSig returns push(signature || hashtype) || push(pubkey).
func P2PKHScriptSig(sigWithHashType, pubKey []byte) ([]byte, error) {
	sigPush, err := codec.PushData(sigWithHashType)
	if err != nil {
		return nil, fmt.Errorf("signature push: %w", err)
	}

	keyPush, err := codec.PushData(pubKey)
	if err != nil {
		return nil, fmt.Errorf("pubkey push: %w", err)
	}

	return append(sigPush, keyPush...), nil
}

// ExtractP2PKHPubKey splits a P2PKH scriptSig into its signature (with
// hash type byte) and public key.
func ExtractP2PKHPubKey(scriptSig []byte) (sig, pubKey []byte, err error) {
	sig, rest, err := codec.ReadPush(scriptSig)
	if err != nil {
		return nil, nil, fmt.Errorf("reading signature: %w", err)
	}

	pubKey, rest, err = codec.ReadPush(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("reading public key: %w", err)
	}

	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%d trailing bytes in scriptSig", len(rest))
	}

	return sig, pubKey, nil
}
