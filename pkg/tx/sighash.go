package tx

import (
	"bytes"
	"fmt"

	"github.com/suffix-labs/lana-tx/pkg/codec"
	"github.com/suffix-labs/lana-tx/pkg/crypto"
)

// SignatureHash computes the legacy SIGHASH_ALL digest for input idx.
//
// The preimage is the full transaction serialization (nTime included)
// with every input script empty except input idx, which carries the
// scriptPubKey of the output it spends, followed by hashType as 4 LE
// bytes. The digest is sha256d of the preimage.
func (t *Transaction) SignatureHash(idx int, prevScript []byte, hashType uint32) ([32]byte, error) {
	if idx < 0 || idx >= len(t.Inputs) {
		return [32]byte{}, fmt.Errorf("%w: %d (have %d inputs)", ErrInputOutOfRange, idx, len(t.Inputs))
	}

	if hashType != crypto.SigHashAll {
		return [32]byte{}, fmt.Errorf("unsupported sighash type 0x%02x", hashType)
	}

	var buf bytes.Buffer
	if err := t.write(&buf, idx, prevScript); err != nil {
		return [32]byte{}, err
	}
	buf.Write(codec.PutUint32LE(nil, hashType))

	return crypto.Sha256d(buf.Bytes()), nil
}
