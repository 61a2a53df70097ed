package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Push opcodes.
const (
	OpPushData1 = 0x4c
	OpPushData2 = 0x4d
)

// MaxPushSize is one past the largest payload PushData accepts.
const MaxPushSize = 1 << 16

var ErrPushTooLarge = errors.New("push data too large")

// PushData returns the script encoding that pushes data onto the stack.
func PushData(data []byte) ([]byte, error) {
	n := len(data)

	var out []byte
	switch {
	case n < OpPushData1:
		out = make([]byte, 0, 1+n)
		out = append(out, byte(n))
	case n < 0x100:
		out = make([]byte, 0, 2+n)
		out = append(out, OpPushData1, byte(n))
	case n < MaxPushSize:
		out = make([]byte, 0, 3+n)
		out = append(out, OpPushData2)
		out = binary.LittleEndian.AppendUint16(out, uint16(n))
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrPushTooLarge, n)
	}

	return append(out, data...), nil
}

// ReadPush decodes a single push at the start of script and returns the
// pushed data and the remainder of the script.
func ReadPush(script []byte) (data, rest []byte, err error) {
	if len(script) == 0 {
		return nil, nil, errors.New("empty script")
	}

	op := script[0]
	var n, hdr int
	switch {
	case op < OpPushData1:
		n, hdr = int(op), 1
	case op == OpPushData1:
		if len(script) < 2 {
			return nil, nil, errors.New("truncated OP_PUSHDATA1")
		}
		n, hdr = int(script[1]), 2
	case op == OpPushData2:
		if len(script) < 3 {
			return nil, nil, errors.New("truncated OP_PUSHDATA2")
		}
		n, hdr = int(binary.LittleEndian.Uint16(script[1:3])), 3
	default:
		return nil, nil, fmt.Errorf("opcode 0x%02x is not a push", op)
	}

	if len(script) < hdr+n {
		return nil, nil, fmt.Errorf("push of %d bytes exceeds script length", n)
	}

	return script[hdr : hdr+n], script[hdr+n:], nil
}
