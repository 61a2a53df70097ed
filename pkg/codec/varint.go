package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxVarInt is the largest value WriteVarInt will encode.
const MaxVarInt = 0xffffffff

var ErrValueTooLarge = errors.New("varint value too large")

// VarIntSize returns the encoded length of n.
func VarIntSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// AppendVarInt appends the Bitcoin compact-size encoding of n to dst:
// n < 0xfd is one byte, up to 0xffff is 0xfd + 2 LE bytes, up to
// 0xffffffff is 0xfe + 4 LE bytes.
func AppendVarInt(dst []byte, n uint64) ([]byte, error) {
	switch {
	case n < 0xfd:
		return append(dst, byte(n)), nil
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return binary.LittleEndian.AppendUint16(dst, uint16(n)), nil
	case n <= MaxVarInt:
		dst = append(dst, 0xfe)
		return binary.LittleEndian.AppendUint32(dst, uint32(n)), nil
	default:
		return dst, fmt.Errorf("%w: %d", ErrValueTooLarge, n)
	}
}

// WriteVarInt writes the compact-size encoding of n to buf.
func WriteVarInt(buf *bytes.Buffer, n uint64) error {
	var scratch [5]byte
	enc, err := AppendVarInt(scratch[:0], n)
	if err != nil {
		return err
	}

	buf.Write(enc)
	return nil
}

// ReadVarInt reads a compact-size integer. The 9-byte 0xff form is accepted
// on read since transactions from the network may carry it.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	switch prefix[0] {
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	default:
		return uint64(prefix[0]), nil
	}
}
