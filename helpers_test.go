package huffman

import (
	"testing"
)

// RFC 7541 Appendix C literals, as used by the minhq test suite.
var rfcVectors = []struct {
	text  string
	hpack string
}{
	{"www.example.com", "f1e3c2e5f23a6ba0ab90f4ff"},
	{"no-cache", "a8eb10649cbf"},
	{"custom-key", "25a849e95ba97d7f"},
	{"custom-value", "25a849e95bb8e8b4bf"},
	{"private", "aec3771a4b"},
	{"Mon, 21 Oct 2013 20:13:21 GMT", "d07abe941054d444a8200595040b8166e082a62d1bff"},
	{"https://www.example.com", "9d29ad171863c78f0b97c8e9ae82ae43d3"},
	{"Mon, 21 Oct 2013 20:13:22 GMT", "d07abe941054d444a8200595040b8166e084a62d1bff"},
	{"gzip", "9bd9ab"},
	{"foo=ASDJKHQKBZXOQWEOPIUAXQWEOIU; max-age=3600; version=1",
		"94e7821dd7f2e6c7b335dfdfcd5b3960d5af27087f3672c1ab270fb5291f9587" +
			"316065c003ed4ee5b1063d5007"},
}

// Narrow, deep, pair-heavy and wide-root layouts. With an 11 or 16 bit root
// several codes can be left over when the input runs out.
var testGeometries = []Geometry{
	DefaultGeometry,
	{8},
	{5, 16},
	{9, 4, 6},
	{1},
	{11},
	{16},
}

// toyAlphabet is A=0 B=10 C=110 D=111, padded with ones.
func toyAlphabet(t testing.TB) *Alphabet {
	t.Helper()
	lengths := make([]uint8, 'D'+1)
	lengths['A'] = 1
	lengths['B'] = 2
	lengths['C'] = 3
	lengths['D'] = 3
	a, err := Canonical("toy", lengths, 0)
	if err != nil {
		t.Fatalf("toy alphabet: %v", err)
	}
	return a
}

func toyTable(t testing.TB) *Table {
	t.Helper()
	table, err := Build(toyAlphabet(t), Geometry{8})
	if err != nil {
		t.Fatalf("toy table: %v", err)
	}
	return table
}

func buildTable(t testing.TB, g Geometry) *Table {
	t.Helper()
	table, err := Build(HPACK, g)
	if err != nil {
		t.Fatalf("Build(%v): %v", g, err)
	}
	return table
}

// collect decodes in and returns every symbol the sink saw, even on failure.
func collect(table *Table, in []byte) ([]byte, error) {
	var out []byte
	err := table.Decode(in, func(sym byte) error {
		out = append(out, sym)
		return nil
	})
	return out, err
}
