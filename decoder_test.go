package huffman

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stvp/assert"
	"golang.org/x/net/http2/hpack"
)

func TestDecodeRFCVectors(t *testing.T) {
	for _, tt := range rfcVectors {
		t.Run(tt.text, func(t *testing.T) {
			in, err := hex.DecodeString(tt.hpack)
			assert.Nil(t, err)

			got, err := Decode(in)
			assert.Nil(t, err)
			assert.Equal(t, tt.text, got)
		})
	}
}

func TestDecodeToyAlphabet(t *testing.T) {
	table := toyTable(t)
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, ""},
		{"A B then padding", []byte{0x5f}, "AB"},
		{"A B D B without padding", []byte{0x5e}, "ABDB"},
		{"two D then padding", []byte{0xff}, "DD"},
		{"eight A", []byte{0x00}, "AAAAAAAA"},
		{"four A then padding", []byte{0x0f}, "AAAA"},
		{"five A then padding", []byte{0x07}, "AAAAA"},
		{"C C then padding", []byte{0xdb}, "CC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.DecodeString(tt.in)
			assert.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// toySequences returns every string over ABCD of up to n symbols.
func toySequences(n int) []string {
	out := []string{""}
	level := []string{""}
	for i := 0; i < n; i++ {
		var next []string
		for _, s := range level {
			for _, c := range "ABCD" {
				next = append(next, s+string(c))
			}
		}
		out = append(out, next...)
		level = next
	}
	return out
}

// Every encoder output decodes. Padding is all ones, the code of D, so a
// trailing D or three padding bits make two strings share an encoding:
// "A" and "AD" are both 01111111. The decoded string always encodes back to
// the same bytes, and is the input itself when neither applies.
func TestToyRoundTrip(t *testing.T) {
	a := toyAlphabet(t)
	enc := NewEncoder(a)
	one, _ := enc.Encode([]byte("A"))
	two, _ := enc.Encode([]byte("AD"))
	assert.Equal(t, one, two)

	for _, g := range []Geometry{{8}, {1}, {3}, {4, 2}, {16}} {
		table, err := Build(a, g)
		assert.Nil(t, err)
		for _, s := range toySequences(8) {
			in, err := enc.Encode([]byte(s))
			assert.Nil(t, err)

			got, err := table.DecodeString(in)
			if err != nil {
				t.Fatalf("%v %q (%08b): %v", g, s, in, err)
			}
			again, err := enc.Encode([]byte(got))
			assert.Nil(t, err)
			if !bytes.Equal(in, again) {
				t.Fatalf("%v %q (%08b) decoded to %q", g, s, in, got)
			}

			bits := 0
			for i := 0; i < len(s); i++ {
				bits += int(enc.lengths[s[i]])
			}
			pad := len(in)*8 - bits
			if pad < 3 && !strings.HasSuffix(s, "D") && got != s {
				t.Fatalf("%v %q (%08b) decoded to %q", g, s, in, got)
			}
		}
	}
}

func TestDecodeWideRoot(t *testing.T) {
	enc := NewEncoder(HPACK)
	for _, g := range []Geometry{{11}, {16}, {16, 8}} {
		table := buildTable(t, g)
		for _, s := range []string{"a", "aa", "aaa", "aaaa", "aaaaa", "0000000", "a0a0a0", "test", "*/*"} {
			in, err := enc.Encode([]byte(s))
			assert.Nil(t, err)
			got, err := table.DecodeString(in)
			if err != nil || got != s {
				t.Errorf("%v %q (%x): got %q, %v", g, s, in, got, err)
			}
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		err  error
	}{
		{"all ones byte", []byte{0xff}, ErrInvalidPadding},
		{"two bytes of ones", []byte{0xff, 0xff}, ErrInvalidPadding},
		{"zero then zero padding", []byte{0x00}, ErrInvalidPadding},
		{"cut inside an eight bit code", []byte{0xfe}, ErrTruncated},
		{"cut inside a long code", []byte{0xff, 0xfe}, ErrTruncated},
		{"end of stream in data", []byte{0xff, 0xff, 0xff, 0xff}, ErrInvalidCode},
		{"a with a zero padding bit", []byte{0x1e}, ErrInvalidPadding},
		{"a with a middle padding bit cleared", []byte{0x1d}, ErrInvalidPadding},
		{"a with a high padding bit cleared", []byte{0x1b}, ErrInvalidPadding},
		{"0 with a zero padding bit", []byte{0x06}, ErrInvalidPadding},
		{"a a with a full byte of padding", []byte{0x18, 0xff, 0xff}, ErrInvalidPadding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			if !errors.Is(err, tt.err) {
				t.Errorf("Decode(%x) error = %v, want %v", tt.in, err, tt.err)
			}
			if _, xerr := hpack.HuffmanDecodeToString(tt.in); xerr == nil {
				t.Errorf("x/net accepted %x", tt.in)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(nil)
	assert.Nil(t, err)
	assert.Equal(t, "", got)

	calls := 0
	err = DefaultTable().Decode([]byte{}, func(byte) error {
		calls++
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, 0, calls)
}

func TestDecodeShortValid(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte{0x1f}, "a"},
		{[]byte{0x07}, "0"},
		{[]byte{0x18, 0xff}, "aa"},
		{[]byte{0x00, 0x01}, "000"},
	}
	for _, tt := range tests {
		got, err := Decode(tt.in)
		assert.Nil(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecodeErrorPosition(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff, 0xff})

	var derr *DecodeError
	assert.True(t, errors.As(err, &derr))
	assert.Equal(t, 4, derr.Offset)
	assert.Equal(t, ErrInvalidCode, errors.Cause(err))
	assert.True(t, derr.Level > 0)
}

// Padding of up to five bits cannot turn into a code when one bit flips, so
// the flip is always rejected.
func TestDecodeRejectsFlippedPadding(t *testing.T) {
	enc := NewEncoder(HPACK)
	for _, s := range []string{"a", "0", "no-cache", "x", "Zz"} {
		in, err := enc.Encode([]byte(s))
		assert.Nil(t, err)

		bits := 0
		for i := 0; i < len(s); i++ {
			bits += int(enc.lengths[s[i]])
		}
		pad := len(in)*8 - bits
		if pad > 5 {
			t.Fatalf("%q has %d padding bits", s, pad)
		}
		for i := 0; i < pad; i++ {
			flipped := append([]byte(nil), in...)
			flipped[len(flipped)-1] ^= 1 << uint(i)
			if _, err := Decode(flipped); err == nil {
				t.Errorf("%q: padding bit %d flipped (%x) accepted", s, i, flipped)
			}
		}
	}
}

func TestDecodeSingleSymbolsAndPairs(t *testing.T) {
	enc := NewEncoder(HPACK)
	table := DefaultTable()
	for a := 0; a < 256; a++ {
		for b := -1; b < 256; b++ {
			src := []byte{byte(a)}
			if b >= 0 {
				src = append(src, byte(b))
			}
			in, err := enc.Encode(src)
			assert.Nil(t, err)
			got, err := table.AppendDecode(nil, in)
			if err != nil || string(got) != string(src) {
				t.Fatalf("%x: got %x, %v", src, got, err)
			}
		}
	}
}

func randomLiterals(n int) [][]byte {
	r := rand.New(rand.NewSource(7541))
	out := make([][]byte, n)
	for i := range out {
		b := make([]byte, r.Intn(64))
		for j := range b {
			if r.Intn(4) == 0 {
				b[j] = byte(r.Intn(256))
			} else {
				b[j] = byte(' ' + r.Intn(95))
			}
		}
		out[i] = b
	}
	return out
}

func TestRoundTripAgainstXNet(t *testing.T) {
	literals := randomLiterals(500)
	for _, g := range testGeometries {
		table := buildTable(t, g)
		t.Run(fmt.Sprint(g), func(t *testing.T) {
			for _, lit := range literals {
				in := hpack.AppendHuffmanString(nil, string(lit))
				got, err := table.DecodeString(in)
				if err != nil {
					t.Fatalf("%x: %v", in, err)
				}
				assert.Equal(t, string(lit), got)
			}
		})
	}
}

// Random bytes are accepted or rejected exactly as x/net does.
func TestAgreesWithXNetOnGarbage(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	table := DefaultTable()
	for i := 0; i < 20000; i++ {
		in := make([]byte, 1+r.Intn(6))
		r.Read(in)

		got, err := table.DecodeString(in)
		want, xerr := hpack.HuffmanDecodeToString(in)
		if (err == nil) != (xerr == nil) {
			t.Fatalf("%x: got %v, x/net %v", in, err, xerr)
		}
		if err == nil && got != want {
			t.Fatalf("%x: got %q, x/net %q", in, got, want)
		}
	}
}

func TestSinkErrorStopsDecode(t *testing.T) {
	errStop := errors.New("stop")
	in, _ := hex.DecodeString(rfcVectors[0].hpack)

	var got []byte
	err := DefaultTable().Decode(in, func(sym byte) error {
		if len(got) == 3 {
			return errStop
		}
		got = append(got, sym)
		return nil
	})
	assert.True(t, errors.Is(err, errStop))
	assert.Equal(t, "www", string(got))
}

func TestConcurrentDecode(t *testing.T) {
	table := DefaultTable()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, tt := range rfcVectors {
					in, _ := hex.DecodeString(tt.hpack)
					got, err := table.DecodeString(in)
					if err != nil || got != tt.text {
						errs <- errors.Errorf("%s: got %q, %v", tt.hpack, got, err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func BenchmarkDecode(b *testing.B) {
	in, _ := hex.DecodeString(rfcVectors[len(rfcVectors)-1].hpack)
	table := DefaultTable()
	dst := make([]byte, 0, 128)
	b.SetBytes(int64(len(in)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var err error
		if dst, err = table.AppendDecode(dst[:0], in); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeXNet(b *testing.B) {
	in, _ := hex.DecodeString(rfcVectors[len(rfcVectors)-1].hpack)
	b.SetBytes(int64(len(in)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := hpack.HuffmanDecodeToString(in); err != nil {
			b.Fatal(err)
		}
	}
}
