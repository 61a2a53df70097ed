package tx

import (
	"bytes"
	"fmt"

	"github.com/suffix-labs/lana-tx/pkg/codec"
	"github.com/suffix-labs/lana-tx/pkg/crypto"
)

// Serialize returns the wire encoding of the transaction.
func (t *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.write(&buf, -1, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hex returns the serialized transaction as lowercase hex.
func (t *Transaction) Hex() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return codec.EncodeHex(raw), nil
}

// TxID returns the transaction id in display order: the reversed sha256d
// of the serialization.
func (t *Transaction) TxID() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	h := crypto.Sha256d(raw)
	return codec.EncodeHex(codec.ReverseBytes(h[:])), nil
}

// write encodes the transaction. When signIdx >= 0 every input script is
// blanked except input signIdx, which carries signScript.
func (t *Transaction) write(buf *bytes.Buffer, signIdx int, signScript []byte) error {
	buf.Write(codec.PutUint32LE(nil, uint32(t.Version)))
	buf.Write(codec.PutUint32LE(nil, t.Time))

	if err := codec.WriteVarInt(buf, uint64(len(t.Inputs))); err != nil {
		return fmt.Errorf("input count: %w", err)
	}

	for i, in := range t.Inputs {
		script := in.ScriptSig
		if signIdx >= 0 {
			script = nil
			if i == signIdx {
				script = signScript
			}
		}

		buf.Write(in.PrevTxID[:])
		buf.Write(codec.PutUint32LE(nil, in.PrevVout))
		if err := writeScript(buf, script); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		buf.Write(codec.PutUint32LE(nil, in.Sequence))
	}

	if err := codec.WriteVarInt(buf, uint64(len(t.Outputs))); err != nil {
		return fmt.Errorf("output count: %w", err)
	}

	for i, out := range t.Outputs {
		buf.Write(codec.PutUint64LE(nil, out.Value))
		if err := writeScript(buf, out.ScriptPubKey); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}

	buf.Write(codec.PutUint32LE(nil, t.LockTime))
	return nil
}

func writeScript(buf *bytes.Buffer, script []byte) error {
	if err := codec.WriteVarInt(buf, uint64(len(script))); err != nil {
		return err
	}
	buf.Write(script)
	return nil
}
