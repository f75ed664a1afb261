// Package varint packs unsigned integers into the variable-length encoding
// used to frame entropy absorption records.
package varint

import (
	"encoding/binary"
	"errors"
)

// Common errors.
var (
	ErrBufTooSmall = errors.New("varint: buffer too small")
	ErrMalformed   = errors.New("varint: malformed or oversized integer")
)

// Pack64 packs a uint64 into a varint.
func Pack64(n uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	return buf[:binary.PutUvarint(buf, n)]
}

// Unpack64 unpacks a varint from the beginning of the given byte slice and
// returns the value and the number of bytes consumed.
func Unpack64(data []byte) (uint64, int, error) {
	n, r := binary.Uvarint(data)
	switch {
	case r == 0:
		return 0, 0, ErrBufTooSmall
	case r < 0:
		return 0, 0, ErrMalformed
	default:
		return n, r, nil
	}
}

// PrependLength prepends the varint encoded length of the byte slice to itself.
func PrependLength(data []byte) []byte {
	return append(Pack64(uint64(len(data))), data...)
}

// GetNextBlock extracts a length-prefixed block from the beginning of the
// given byte slice and returns the block and the total number of bytes
// consumed.
func GetNextBlock(data []byte) ([]byte, int, error) {
	l, n, err := Unpack64(data)
	if err != nil {
		return nil, 0, err
	}
	length := int(l)
	totalLength := length + n
	if totalLength > len(data) {
		return nil, 0, ErrBufTooSmall
	}
	return data[n:totalLength], totalLength, nil
}
