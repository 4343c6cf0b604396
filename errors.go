package huffman

import (
	"fmt"

	"github.com/pkg/errors"
)

// Decode failures. Every error returned by a decode path matches exactly one
// of these with errors.Is.
var (
	// ErrInvalidCode means a bit pattern is not a prefix of any code, or the
	// end-of-stream code appeared in the data.
	ErrInvalidCode = errors.New("huffman: invalid code")

	// ErrInvalidPadding means the trailing bits are not the high-order bits
	// of the end-of-stream code, or are longer than the allowed padding.
	ErrInvalidPadding = errors.New("huffman: invalid padding")

	// ErrTruncated means the input ended in the middle of a code.
	ErrTruncated = errors.New("huffman: truncated code")
)

// Configuration failures, reported by Build, ReadTable and Alphabet.Validate.
var (
	ErrBadAlphabet = errors.New("huffman: bad alphabet")
	ErrBadGeometry = errors.New("huffman: bad geometry")
	ErrBadTable    = errors.New("huffman: malformed table data")
)

// HPACK framing failures.
var (
	ErrIntegerOverflow   = errors.New("hpack: integer overflow")
	ErrStringTooLong     = errors.New("hpack: string literal too long")
	ErrIndexOutOfRange   = errors.New("hpack: header index out of range")
	ErrUnexpectedEnd     = errors.New("hpack: unexpected end of header block")
	ErrTableSizeTooLarge = errors.New("hpack: dynamic table size update too large")
	ErrLateSizeUpdate    = errors.New("hpack: dynamic table size update after a header field")
)

// failKind selects the sentinel stored in an Invalid table entry.
type failKind uint8

const (
	failCode failKind = iota
	failPadding
	failTruncated
)

func (k failKind) err() error {
	switch k {
	case failPadding:
		return ErrInvalidPadding
	case failTruncated:
		return ErrTruncated
	}
	return ErrInvalidCode
}

// DecodeError records where in the input a decode failed.
type DecodeError struct {
	Offset int // input bytes consumed when the failure was detected
	Level  int // table level that rejected the input
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v (offset %d, level %d)", e.Err, e.Offset, e.Level)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through a DecodeError.
func (e *DecodeError) Cause() error { return e.Err }
