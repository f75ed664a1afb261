// Package bitarray implements an arbitrary-bit-length binary value packed
// into big-endian 32-bit words, the substrate used by ciphers, hashes and
// codecs built on top of this library.
//
// All words except possibly the last carry 32 significant bits. The last
// word may be partial: it holds fewer than 32 significant bits,
// left-justified, with the remaining low bits zero. The significant bit
// count is tracked explicitly instead of being packed into the word itself.
//
// Operations return new values and never modify their receiver, with the
// documented exception of SwapBytes.
package bitarray

import (
	"github.com/cryptbase/cryptbase/errs"
)

// BitArray is a bit string of arbitrary length.
// The zero value is an empty bit string, ready to use.
type BitArray struct {
	words  []uint32
	bitLen int
}

// FromWords returns a bit array of full 32-bit words. The slice is copied.
func FromWords(words []uint32) BitArray {
	w := make([]uint32, len(words))
	copy(w, words)
	return BitArray{words: w, bitLen: len(words) * 32}
}

// Partial returns a bit array holding the low nbits bits of x,
// left-justified. With nbits == 32 it is identical to a single full word.
func Partial(nbits int, x uint32) (BitArray, error) {
	if nbits < 0 || nbits > 32 {
		return BitArray{}, errs.Invalidf("bitarray: partial length %d out of range", nbits)
	}
	if nbits == 0 {
		return BitArray{}, nil
	}
	return BitArray{
		words:  []uint32{x << (32 - uint(nbits))},
		bitLen: nbits,
	}, nil
}

// FromBytes returns a bit array holding all bits of b in order.
func FromBytes(b []byte) BitArray {
	a := BitArray{
		words:  make([]uint32, (len(b)+3)/4),
		bitLen: len(b) * 8,
	}
	for i, v := range b {
		a.words[i/4] |= uint32(v) << (24 - uint(i%4)*8)
	}
	return a
}

// BitLen returns the number of significant bits.
func (a BitArray) BitLen() int {
	return a.bitLen
}

// Words returns the underlying packed words. The returned slice must not be
// modified.
func (a BitArray) Words() []uint32 {
	return a.words
}

// Tail returns the last word and its significant bit count. A full last
// word reports 32 significant bits, an empty array reports (0, 0).
func (a BitArray) Tail() (word uint32, nbits int) {
	if a.bitLen == 0 {
		return 0, 0
	}
	nbits = a.bitLen & 31
	if nbits == 0 {
		nbits = 32
	}
	return a.words[len(a.words)-1], nbits
}

// Bytes returns the bits packed into bytes, most significant bit first.
// Trailing bits of the last byte are zero if the bit length is not a
// multiple of eight.
func (a BitArray) Bytes() []byte {
	out := make([]byte, (a.bitLen+7)/8)
	for i := range out {
		out[i] = byte(a.words[i/4] >> (24 - uint(i%4)*8))
	}
	return out
}

// Clamp returns a copy truncated to at most nbits significant bits. If the
// array is already short enough it is returned unchanged.
func (a BitArray) Clamp(nbits int) BitArray {
	if nbits < 0 || a.bitLen <= nbits {
		return a
	}
	nw := (nbits + 31) / 32
	words := make([]uint32, nw)
	copy(words, a.words[:nw])
	maskTail(words, nbits)
	return BitArray{words: words, bitLen: nbits}
}

// Extract returns the blength-bit unsigned integer at bit offset bstart.
// The requested span may cross a word boundary but must lie entirely within
// the array, and blength must not exceed 32.
func (a BitArray) Extract(bstart, blength int) (uint32, error) {
	if blength < 0 || blength > 32 {
		return 0, errs.Invalidf("bitarray: extract length %d out of range", blength)
	}
	if bstart < 0 || bstart+blength > a.bitLen {
		return 0, errs.Invalidf("bitarray: extract range [%d, %d) exceeds bit length %d", bstart, bstart+blength, a.bitLen)
	}
	if blength == 0 {
		return 0, nil
	}
	wi := bstart >> 5
	// 64-bit window over the word holding bstart and its successor
	x := uint64(a.words[wi]) << 32
	if wi+1 < len(a.words) {
		x |= uint64(a.words[wi+1])
	}
	return uint32(x << uint(bstart&31) >> uint(64-blength)), nil
}

// Slice returns the bits of the half-open range [bstart, bend) as a new bit
// array.
func (a BitArray) Slice(bstart, bend int) (BitArray, error) {
	if bstart < 0 || bend < bstart || bend > a.bitLen {
		return BitArray{}, errs.Invalidf("bitarray: slice range [%d, %d) exceeds bit length %d", bstart, bend, a.bitLen)
	}
	n := bend - bstart
	if n == 0 {
		return BitArray{}, nil
	}
	off := bstart >> 5
	s := uint(bstart & 31)
	words := make([]uint32, (n+31)/32)
	for i := range words {
		w := a.words[off+i] << s
		if s != 0 && off+i+1 < len(a.words) {
			w |= a.words[off+i+1] >> (32 - s)
		}
		words[i] = w
	}
	maskTail(words, n)
	return BitArray{words: words, bitLen: n}, nil
}

// SliceFrom returns the bits from bstart to the end as a new bit array.
func (a BitArray) SliceFrom(bstart int) (BitArray, error) {
	return a.Slice(bstart, a.bitLen)
}

// Concat returns the bitwise concatenation of a and b.
func (a BitArray) Concat(b BitArray) BitArray {
	if a.bitLen == 0 {
		return b
	}
	if b.bitLen == 0 {
		return a
	}

	total := a.bitLen + b.bitLen
	shift := uint(a.bitLen & 31)
	words := make([]uint32, 0, (total+31)/32)
	words = append(words, a.words...)

	if shift == 0 {
		words = append(words, b.words...)
	} else {
		words = shiftRight(b.words, shift, words)
		words = words[:(total+31)/32]
	}
	return BitArray{words: words, bitLen: total}
}

// Equal compares two bit arrays in constant time with respect to their
// content. Only the public bit length may cause an early exit; the words
// themselves are always fully accumulated, as bit arrays routinely hold
// secret material.
func (a BitArray) Equal(b BitArray) bool {
	if a.bitLen != b.bitLen {
		return false
	}
	var x uint32
	for i := range a.words {
		x |= a.words[i] ^ b.words[i]
	}
	return x == 0
}

// Xor4 returns the bitwise XOR of two four-word blocks.
func Xor4(x, y [4]uint32) [4]uint32 {
	return [4]uint32{x[0] ^ y[0], x[1] ^ y[1], x[2] ^ y[2], x[3] ^ y[3]}
}

// SwapBytes reverses the byte order of every word in place. It is only
// defined for arrays made of full words.
func (a BitArray) SwapBytes() error {
	if a.bitLen&31 != 0 {
		return errs.Invalidf("bitarray: cannot byte-swap array with partial last word (%d bits)", a.bitLen)
	}
	for i, v := range a.words {
		a.words[i] = v>>24 | v>>8&0xff00 | v&0xff00<<8 | v<<24
	}
	return nil
}

// shiftRight appends the words of src, shifted right by shift bits, to out.
// Bits shifted out of each word carry into the next; the low bits of the
// last word of out seed the first carry. shift must be in [1, 31].
func shiftRight(src []uint32, shift uint, out []uint32) []uint32 {
	carry := out[len(out)-1]
	out = out[:len(out)-1]
	for _, w := range src {
		out = append(out, carry|w>>shift)
		carry = w << (32 - shift)
	}
	return append(out, carry)
}

// maskTail zeros all bits at or beyond nbits in the last word.
func maskTail(words []uint32, nbits int) {
	if r := nbits & 31; r != 0 {
		words[len(words)-1] &= ^uint32(0) << (32 - uint(r))
	}
}
