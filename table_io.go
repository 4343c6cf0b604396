package huffman

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Serialized layout, all integers big-endian:
//
//	"HUFT" version:u8 geometryLen:u8 widths:u8... levels:u32
//	per level: prefix:u64 prefixLen:u8 width:u8 depth:u8
//	           entries[1<<width] then tails[r][1<<r] for r < width
//	entry:     op:u8 bits:u8 fail:u8 sym0:u8 sym1:u8 next:u16
const (
	tableMagic   = "HUFT"
	tableVersion = 1
	entrySize    = 7

	// entries decoded per read, so a corrupt width cannot force a large
	// allocation before the data is there
	entryChunk = 512
)

// WriteTo serializes the table set so it can be generated offline and
// loaded with ReadTable at process start.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	put := func(b []byte) error {
		n, err := bw.Write(b)
		written += int64(n)
		return err
	}

	hdr := append([]byte(tableMagic), tableVersion, byte(len(t.geometry)))
	hdr = append(hdr, t.geometry...)
	hdr = binary.BigEndian.AppendUint32(hdr, uint32(len(t.levels)))
	if err := put(hdr); err != nil {
		return written, err
	}

	buf := make([]byte, 0, 4096)
	for i := range t.levels {
		lv := &t.levels[i]
		buf = binary.BigEndian.AppendUint64(buf[:0], lv.prefix)
		buf = append(buf, lv.prefixLen, lv.width, lv.depth)
		buf = appendEntries(buf, lv.entries)
		for _, tail := range lv.tails {
			buf = appendEntries(buf, tail)
		}
		if err := put(buf); err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

func appendEntries(buf []byte, entries []entry) []byte {
	for _, e := range entries {
		buf = append(buf, byte(e.op), e.bits, byte(e.fail), e.sym[0], e.sym[1])
		buf = binary.BigEndian.AppendUint16(buf, e.next)
	}
	return buf
}

// ReadTable loads a table set written by WriteTo. The result has no
// Alphabet; every entry is checked so a corrupt file cannot make a decoder
// index out of range.
func ReadTable(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	read := func(n int) ([]byte, error) {
		b := make([]byte, n)
		if _, err := io.ReadFull(br, b); err != nil {
			return nil, errors.Wrap(ErrBadTable, err.Error())
		}
		return b, nil
	}

	hdr, err := read(len(tableMagic) + 2)
	if err != nil {
		return nil, err
	}
	if string(hdr[:4]) != tableMagic {
		return nil, errors.Wrap(ErrBadTable, "bad magic")
	}
	if hdr[4] != tableVersion {
		return nil, errors.Wrapf(ErrBadTable, "version %d", hdr[4])
	}
	t := &Table{}
	if t.geometry, err = read(int(hdr[5])); err != nil {
		return nil, err
	}
	if err := t.geometry.validate(); err != nil {
		return nil, errors.Wrap(ErrBadTable, err.Error())
	}

	b, err := read(4)
	if err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(b)
	if count == 0 || count > 1<<16 {
		return nil, errors.Wrapf(ErrBadTable, "%d levels", count)
	}

	for i := 0; i < int(count); i++ {
		b, err := read(11)
		if err != nil {
			return nil, err
		}
		lv := level{
			prefix:    binary.BigEndian.Uint64(b),
			prefixLen: b[8],
			width:     b[9],
			depth:     b[10],
		}
		if lv.width == 0 || lv.width > maxWidth || int(lv.prefixLen)+int(lv.width) > 64 {
			return nil, errors.Wrapf(ErrBadTable, "level %d has width %d after %d bits", i, lv.width, lv.prefixLen)
		}
		if (i == 0) != (lv.prefixLen == 0) {
			return nil, errors.Wrapf(ErrBadTable, "level %d has prefix length %d", i, lv.prefixLen)
		}

		if lv.entries, err = readEntries(br, 1<<lv.width); err != nil {
			return nil, err
		}
		lv.tails = make([][]entry, lv.width)
		for r := range lv.tails {
			if lv.tails[r], err = readEntries(br, 1<<r); err != nil {
				return nil, err
			}
		}
		t.levels = append(t.levels, lv)
	}

	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

func readEntries(r io.Reader, n int) ([]entry, error) {
	var entries []entry
	buf := make([]byte, entrySize*min(n, entryChunk))
	for n > 0 {
		c := min(n, entryChunk)
		b := buf[:c*entrySize]
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, errors.Wrap(ErrBadTable, err.Error())
		}
		for i := 0; i < c; i++ {
			p := b[i*entrySize:]
			entries = append(entries, entry{
				op:   op(p[0]),
				bits: p[1],
				fail: failKind(p[2]),
				sym:  [2]byte{p[3], p[4]},
				next: binary.BigEndian.Uint16(p[5:]),
			})
		}
		n -= c
	}
	return entries, nil
}

// check verifies that every entry is well formed for its table: main tables
// only emit or escape, tail tables only finish, retired bits never exceed the
// bits looked at, and escapes point at existing deeper levels.
func (t *Table) check() error {
	for i := range t.levels {
		lv := &t.levels[i]
		for win, e := range lv.entries {
			switch e.op {
			case opEmit1, opEmit2:
				if e.bits == 0 || e.bits > lv.width {
					return errors.Wrapf(ErrBadTable, "level %d window %d retires %d bits", i, win, e.bits)
				}
			case opEscape:
				if e.bits != lv.width || int(e.next) >= len(t.levels) || int(e.next) <= i {
					return errors.Wrapf(ErrBadTable, "level %d window %d escapes to %d", i, win, e.next)
				}
			case opInvalid:
				if e.fail > failTruncated {
					return errors.Wrapf(ErrBadTable, "level %d window %d fails with %d", i, win, e.fail)
				}
			default:
				return errors.Wrapf(ErrBadTable, "level %d window %d has op %d", i, win, e.op)
			}
		}
		for r, tail := range lv.tails {
			for v, e := range tail {
				switch e.op {
				case opPadding:
				case opNext:
					if e.bits == 0 || int(e.bits) > r {
						return errors.Wrapf(ErrBadTable, "level %d tail %d/%d retires %d bits", i, r, v, e.bits)
					}
				case opInvalid:
					if e.fail > failTruncated {
						return errors.Wrapf(ErrBadTable, "level %d tail %d/%d fails with %d", i, r, v, e.fail)
					}
				default:
					return errors.Wrapf(ErrBadTable, "level %d tail %d/%d has op %d", i, r, v, e.op)
				}
			}
		}
	}
	return nil
}
