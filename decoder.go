package huffman

import (
	"sync"

	"github.com/pkg/errors"
)

// Sink receives decoded symbols in stream order. A non-nil error stops the
// decode and is returned to the caller; the symbol is not offered again.
type Sink func(sym byte) error

// state is the per-call decoder: the unread input, a shift register whose
// low nbits bits are pending, and the level the next lookup uses.
type state struct {
	levels   []level
	in       []byte
	consumed int
	buf      uint64
	nbits    uint
	level    uint16
}

// refill pulls whole bytes until at least target bits are buffered, reading
// no more bytes than that needs. It reports whether target was reached; when
// it was not, the input is exhausted.
func (s *state) refill(target uint) bool {
	if s.nbits >= target {
		return true
	}
	n := int(target-s.nbits+7) / 8
	if n > len(s.in) {
		n = len(s.in)
	}
	for _, b := range s.in[:n] {
		s.buf = s.buf<<8 | uint64(b)
	}
	s.in = s.in[n:]
	s.consumed += n
	s.nbits += uint(n) * 8
	return s.nbits >= target
}

// run walks the table tree until the input is exhausted. With final unset
// it stops there and keeps its state for more input; otherwise it resolves
// the remaining bits as the end of the stream.
func (s *state) run(sink Sink, final bool) error {
	for {
		lv := &s.levels[s.level]
		w := uint(lv.width)
		if !s.refill(w) {
			if !final {
				return nil
			}
			done, err := s.tail(lv, sink)
			if done || err != nil {
				return err
			}
			continue
		}

		e := lv.entries[(s.buf>>(s.nbits-w))&(1<<w-1)]
		switch e.op {
		case opEmit1:
			s.nbits -= uint(e.bits)
			s.level = 0
			if err := sink(e.sym[0]); err != nil {
				return s.sinkFailed(err)
			}
		case opEmit2:
			s.nbits -= uint(e.bits)
			s.level = 0
			if err := sink(e.sym[0]); err != nil {
				return s.sinkFailed(err)
			}
			if err := sink(e.sym[1]); err != nil {
				return s.sinkFailed(err)
			}
		case opEscape:
			s.nbits -= uint(e.bits)
			s.level = e.next
		default:
			return s.fail(e.fail)
		}
	}
}

// tail handles the fewer-than-width bits left at the end of the stream. Each
// call settles padding or one code; after a code the caller loops on what
// is left.
func (s *state) tail(lv *level, sink Sink) (bool, error) {
	r := s.nbits
	e := lv.tails[r][s.buf&(1<<r-1)]
	switch e.op {
	case opPadding:
		s.nbits = 0
		return true, nil
	case opNext:
		s.nbits -= uint(e.bits)
		s.level = 0
		if err := sink(e.sym[0]); err != nil {
			return true, s.sinkFailed(err)
		}
		return false, nil
	}
	return true, s.fail(e.fail)
}

func (s *state) fail(k failKind) error {
	return &DecodeError{Offset: s.consumed, Level: int(s.level), Err: k.err()}
}

func (s *state) sinkFailed(err error) error {
	return errors.Wrapf(err, "huffman: sink rejected symbol at offset %d", s.consumed)
}

// Decode decodes the whole of in, calling sink once per symbol. Symbols
// emitted before a failure are not a valid prefix of the input and should
// be discarded by the caller.
func (t *Table) Decode(in []byte, sink Sink) error {
	s := state{levels: t.levels, in: in}
	return s.run(sink, true)
}

// AppendDecode appends the decoded symbols of in to dst.
func (t *Table) AppendDecode(dst, in []byte) ([]byte, error) {
	err := t.Decode(in, func(sym byte) error {
		dst = append(dst, sym)
		return nil
	})
	return dst, err
}

// DecodeString decodes in to a string.
func (t *Table) DecodeString(in []byte) (string, error) {
	if len(in) == 0 {
		return "", t.Decode(nil, discard)
	}
	// HPACK codes are at least five bits, so this rarely grows
	out, err := t.AppendDecode(make([]byte, 0, len(in)*8/5), in)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func discard(byte) error { return nil }

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable returns the shared RFC 7541 table set, built on first use.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = MustBuild(HPACK, DefaultGeometry)
	})
	return defaultTable
}

// Decode decodes an RFC 7541 Huffman-coded string literal.
func Decode(in []byte) (string, error) {
	return DefaultTable().DecodeString(in)
}
