package tx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/suffix-labs/lana-tx/pkg/codec"
)

// Minimum encoded sizes, used to reject absurd counts before allocating.
const (
	minInputSize  = 32 + 4 + 1 + 4
	minOutputSize = 8 + 1
)

// ParseHex parses a hex-encoded transaction.
func ParseHex(rawHex string) (*Transaction, error) {
	raw, err := codec.DecodeHex(rawHex)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a serialized transaction in the nTime layout.
func Parse(raw []byte) (*Transaction, error) {
	r := bytes.NewReader(raw)
	t := &Transaction{}

	if err := binary.Read(r, binary.LittleEndian, &t.Version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &t.Time); err != nil {
		return nil, fmt.Errorf("reading nTime: %w", err)
	}

	nIn, err := readCount(r, minInputSize)
	if err != nil {
		return nil, fmt.Errorf("reading input count: %w", err)
	}

	t.Inputs = make([]*Input, nIn)
	for i := range t.Inputs {
		if t.Inputs[i], err = parseInput(r); err != nil {
			return nil, fmt.Errorf("parsing input %d: %w", i, err)
		}
	}

	t.Outputs, err = parseOutputs(r)
	if err != nil {
		return nil, err
	}

	if err := binary.Read(r, binary.LittleEndian, &t.LockTime); err != nil {
		return nil, fmt.Errorf("reading locktime: %w", err)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after transaction", r.Len())
	}

	return t, nil
}

// ScriptPubKey returns the script of output index in a serialized
// transaction, or ErrOutputNotFound if the transaction has no such output.
func ScriptPubKey(raw []byte, index uint32) ([]byte, error) {
	t, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if int(index) >= len(t.Outputs) {
		return nil, fmt.Errorf("%w: index %d, transaction has %d outputs", ErrOutputNotFound, index, len(t.Outputs))
	}

	return t.Outputs[index].ScriptPubKey, nil
}

func parseInput(r *bytes.Reader) (*Input, error) {
	in := &Input{}

	if _, err := io.ReadFull(r, in.PrevTxID[:]); err != nil {
		return nil, fmt.Errorf("reading prevout txid: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &in.PrevVout); err != nil {
		return nil, fmt.Errorf("reading prevout index: %w", err)
	}

	script, err := readScript(r)
	if err != nil {
		return nil, fmt.Errorf("reading scriptSig: %w", err)
	}
	in.ScriptSig = script

	if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
		return nil, fmt.Errorf("reading sequence: %w", err)
	}

	return in, nil
}

func parseOutputs(r *bytes.Reader) ([]*Output, error) {
	nOut, err := readCount(r, minOutputSize)
	if err != nil {
		return nil, fmt.Errorf("reading output count: %w", err)
	}

	outputs := make([]*Output, nOut)
	for i := range outputs {
		out := &Output{}
		if err := binary.Read(r, binary.LittleEndian, &out.Value); err != nil {
			return nil, fmt.Errorf("output %d: reading value: %w", i, err)
		}
		if out.ScriptPubKey, err = readScript(r); err != nil {
			return nil, fmt.Errorf("output %d: reading scriptPubKey: %w", i, err)
		}
		outputs[i] = out
	}

	return outputs, nil
}

func readCount(r *bytes.Reader, minItemSize int) (uint64, error) {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()/minItemSize) {
		return 0, fmt.Errorf("count %d exceeds remaining %d bytes", n, r.Len())
	}
	return n, nil
}

func readScript(r *bytes.Reader) ([]byte, error) {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, fmt.Errorf("script length %d exceeds remaining %d bytes", n, r.Len())
	}

	script := make([]byte, n)
	if _, err := io.ReadFull(r, script); err != nil {
		return nil, err
	}
	return script, nil
}
