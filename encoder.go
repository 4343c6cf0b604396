package huffman

import "github.com/pkg/errors"

// ErrUnknownSymbol is returned when encoding a byte outside the alphabet.
var ErrUnknownSymbol = errors.New("huffman: symbol not in alphabet")

// Encoder is the reference compressor for an alphabet. Decoding never
// depends on it; it produces test vectors and sizes literals.
type Encoder struct {
	alphabet *Alphabet
	// Pre-computed lookup tables
	codes   [256]uint32
	lengths [256]uint8 // zero for symbols outside the alphabet
}

// NewEncoder creates an encoder for a.
func NewEncoder(a *Alphabet) *Encoder {
	e := &Encoder{alphabet: a}
	for _, c := range a.Codes {
		e.codes[c.Sym] = c.Bits
		e.lengths[c.Sym] = c.Len
	}
	return e
}

// AppendEncode appends the code of src to dst, padded to a byte boundary
// with the high-order bits of the end-of-stream code.
func (e *Encoder) AppendEncode(dst, src []byte) ([]byte, error) {
	var acc uint64
	var n uint
	for i, sym := range src {
		length := e.lengths[sym]
		if length == 0 {
			return dst, errors.Wrapf(ErrUnknownSymbol, "byte 0x%02x at %d", sym, i)
		}
		acc = acc<<length | uint64(e.codes[sym])
		n += uint(length)
		for n >= 8 {
			n -= 8
			dst = append(dst, byte(acc>>n))
		}
	}

	if n > 0 {
		pad := uint8(8 - n)
		dst = append(dst, byte(acc<<pad|e.alphabet.padBits(pad)))
	}
	return dst, nil
}

// Encode returns the code of src.
func (e *Encoder) Encode(src []byte) ([]byte, error) {
	return e.AppendEncode(make([]byte, 0, e.EncodedLen(src)), src)
}

// EncodedLen returns the encoded size of src in bytes, without encoding.
// Bytes outside the alphabet count as zero bits.
func (e *Encoder) EncodedLen(src []byte) int {
	bits := 0
	for _, sym := range src {
		bits += int(e.lengths[sym])
	}
	return (bits + 7) / 8
}

// IsWorthEncoding reports whether the encoded form of src is shorter than
// src itself, per RFC 7541 Section 5.2.
func (e *Encoder) IsWorthEncoding(src []byte) bool {
	return len(src) > 0 && e.EncodedLen(src) < len(src)
}
