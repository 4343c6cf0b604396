package huffman

import (
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
	"github.com/stvp/assert"
)

var streamInputs = []string{
	"",
	"1f",
	"18ff",
	"ff",
	"fffe",
	"ffffffff",
	"18ffff",
	"f1e3c2e5f23a6ba0ab90f4ff",
	"d07abe941054d444a8200595040b8166e082a62d1bff",
	"94e7821dd7f2e6c7b335dfdfcd5b3960d5af27087f3672c1ab270fb5291f9587316065c003ed4ee5b1063d5007",
}

func decodeChunks(table *Table, chunks [][]byte) ([]byte, error) {
	var out []byte
	d := NewStreamDecoder(table, func(sym byte) error {
		out = append(out, sym)
		return nil
	})
	for _, c := range chunks {
		n, err := d.Write(c)
		if err != nil {
			return out, err
		}
		if n != len(c) {
			return out, errors.Errorf("wrote %d of %d bytes", n, len(c))
		}
	}
	return out, d.Close()
}

func sameFailure(a, b error) bool {
	for _, sentinel := range []error{ErrInvalidCode, ErrInvalidPadding, ErrTruncated} {
		if errors.Is(a, sentinel) != errors.Is(b, sentinel) {
			return false
		}
	}
	return (a == nil) == (b == nil)
}

func TestStreamMatchesOneShot(t *testing.T) {
	for _, g := range []Geometry{DefaultGeometry, {5, 16}, {1}, {16}} {
		table := buildTable(t, g)
		for _, h := range streamInputs {
			in, _ := hex.DecodeString(h)
			want, wantErr := collect(table, in)

			for split := 0; split <= len(in); split++ {
				got, err := decodeChunks(table, [][]byte{in[:split], in[split:]})
				if !sameFailure(err, wantErr) {
					t.Fatalf("%v %s split at %d: error %v, want %v", g, h, split, err, wantErr)
				}
				if wantErr == nil {
					assert.Equal(t, string(want), string(got))
				}
			}

			var bytewise [][]byte
			for i := range in {
				bytewise = append(bytewise, in[i:i+1])
			}
			got, err := decodeChunks(table, bytewise)
			if !sameFailure(err, wantErr) {
				t.Fatalf("%v %s byte by byte: error %v, want %v", g, h, err, wantErr)
			}
			if wantErr == nil {
				assert.Equal(t, string(want), string(got))
			}
		}
	}
}

func TestStreamHoldsPartialWindow(t *testing.T) {
	var out []byte
	d := NewStreamDecoder(DefaultTable(), func(sym byte) error {
		out = append(out, sym)
		return nil
	})

	// "aa": one byte is short of a root window
	n, err := d.Write([]byte{0x18})
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 8, d.Buffered())
	assert.Equal(t, 0, len(out))

	_, err = d.Write([]byte{0xff})
	assert.Nil(t, err)
	assert.Equal(t, "aa", string(out))
	assert.Equal(t, 6, d.Buffered())

	assert.Nil(t, d.Close())
	assert.Equal(t, 0, d.Buffered())
}

func TestStreamErrorsAreSticky(t *testing.T) {
	d := NewStreamDecoder(DefaultTable(), discard)
	_, err := d.Write([]byte{0xff, 0xff, 0xff, 0xff})
	assert.True(t, errors.Is(err, ErrInvalidCode))

	_, again := d.Write([]byte{0x1f})
	assert.Equal(t, err, again)
	assert.Equal(t, err, d.Close())
}

func TestStreamClosed(t *testing.T) {
	d := NewStreamDecoder(DefaultTable(), discard)
	assert.Nil(t, d.Close())
	assert.Nil(t, d.Close())

	_, err := d.Write([]byte{0x1f})
	assert.Equal(t, ErrStreamClosed, err)
}

func TestStreamCloseRejectsPadding(t *testing.T) {
	d := NewStreamDecoder(DefaultTable(), discard)
	_, err := d.Write([]byte{0x1e})
	assert.Nil(t, err)
	assert.True(t, errors.Is(d.Close(), ErrInvalidPadding))
}

func TestStreamReset(t *testing.T) {
	var out []byte
	d := NewStreamDecoder(DefaultTable(), func(sym byte) error {
		out = append(out, sym)
		return nil
	})
	_, _ = d.Write([]byte{0xff, 0xff, 0xff, 0xff})
	assert.NotNil(t, d.Close())

	d.Reset()
	out = out[:0]
	in, _ := hex.DecodeString("a8eb10649cbf")
	_, err := d.Write(in)
	assert.Nil(t, err)
	assert.Nil(t, d.Close())
	assert.Equal(t, "no-cache", string(out))
}
