// Package tx models LanaCoin transactions: serialization, signature
// hashing, P2PKH scripts, parsing and fee estimation.
//
// LanaCoin transactions follow the legacy Bitcoin layout with one extra
// field, a 4-byte Unix timestamp (nTime) placed right after the version:
//
//	version(4 LE) || nTime(4 LE) || varint(nIn) || inputs ||
//	varint(nOut) || outputs || locktime(4 LE)
//
// nTime is part of every signature preimage.
package tx

import (
	"errors"
	"fmt"

	"github.com/suffix-labs/lana-tx/pkg/chaincfg"
	"github.com/suffix-labs/lana-tx/pkg/codec"
)

// TxIDLen is the length of a transaction id in bytes.
const TxIDLen = 32

var (
	ErrInvalidTxID     = errors.New("invalid transaction id")
	ErrOutputNotFound  = errors.New("output not found")
	ErrInputOutOfRange = errors.New("input index out of range")
)

// Transaction is a LanaCoin transaction.
type Transaction struct {
	Version  int32
	Time     uint32 // nTime, Unix seconds
	Inputs   []*Input
	Outputs  []*Output
	LockTime uint32
}

// Input spends a previous output.
type Input struct {
	// PrevTxID is in internal byte order (the reverse of the display hex).
	PrevTxID  [TxIDLen]byte
	PrevVout  uint32
	ScriptSig []byte
	Sequence  uint32
}

// Output locks Value satoshis to ScriptPubKey.
type Output struct {
	Value        uint64
	ScriptPubKey []byte
}

// New returns an empty transaction for the network with the given nTime.
func New(params *chaincfg.Params, nTime uint32) *Transaction {
	return &Transaction{
		Version:  params.TxVersion,
		Time:     nTime,
		LockTime: chaincfg.DefaultLockTime,
	}
}

// NewInput returns an unsigned input spending txidHex:vout. txidHex is in
// display order, as printed by explorers and returned by Electrum.
func NewInput(txidHex string, vout uint32) (*Input, error) {
	id, err := codec.DecodeHex(txidHex)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidTxID, txidHex, err)
	}
	if len(id) != TxIDLen {
		return nil, fmt.Errorf("%w %q: %d bytes", ErrInvalidTxID, txidHex, len(id))
	}

	in := &Input{PrevVout: vout, Sequence: chaincfg.DefaultSequence}
	copy(in.PrevTxID[:], codec.ReverseBytes(id))
	return in, nil
}

// PrevTxIDHex returns the previous txid in display order.
func (in *Input) PrevTxIDHex() string {
	return codec.EncodeHex(codec.ReverseBytes(in.PrevTxID[:]))
}

// AddInput appends an input.
func (t *Transaction) AddInput(in *Input) {
	t.Inputs = append(t.Inputs, in)
}

// AddOutput appends an output.
func (t *Transaction) AddOutput(value uint64, script []byte) {
	t.Outputs = append(t.Outputs, &Output{Value: value, ScriptPubKey: script})
}

// OutputTotal returns the sum of output values.
func (t *Transaction) OutputTotal() uint64 {
	var sum uint64
	for _, out := range t.Outputs {
		sum += out.Value
	}
	return sum
}
