// Command huffgen compiles a Huffman alphabet into the lookup table set used
// by the decoder, checks it, and optionally writes it out for ReadTable.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/chronnie/huffman"
)

func main() {
	geometry := flag.String("geometry", "10,7,13", "window width per table depth")
	output := flag.String("o", "", "write the table set to this file")
	check := flag.Bool("check", true, "decode every symbol and symbol pair after building")
	flag.Parse()

	g, err := parseGeometry(*geometry)
	if err != nil {
		fail(err)
	}

	table, err := huffman.Build(huffman.HPACK, g)
	if err != nil {
		fail(err)
	}

	stats := table.Stats()
	fmt.Printf("geometry %v: %d levels, depth %d, %d entries, %d tail entries, %d pair entries\n",
		*geometry, stats.Levels, stats.MaxDepth, stats.Entries, stats.TailEntries, stats.Emit2)

	if *check {
		n, err := checkPairs(table)
		if err != nil {
			fail(err)
		}
		fmt.Printf("checked %d inputs\n", n)
	}

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fail(err)
		}
		n, err := table.WriteTo(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fail(err)
		}
		fmt.Printf("wrote %d bytes to %s\n", n, *output)
	}
}

func parseGeometry(s string) (huffman.Geometry, error) {
	var g huffman.Geometry
	for _, part := range strings.Split(s, ",") {
		w, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "geometry %q", s)
		}
		g = append(g, uint8(w))
	}
	return g, nil
}

// checkPairs round-trips every symbol and every ordered pair of symbols.
func checkPairs(t *huffman.Table) (int, error) {
	enc := huffman.NewEncoder(huffman.HPACK)
	n := 0
	var buf []byte
	for a := 0; a < 256; a++ {
		for b := -1; b < 256; b++ {
			in := []byte{byte(a)}
			if b >= 0 {
				in = append(in, byte(b))
			}
			coded, err := enc.Encode(in)
			if err != nil {
				return n, err
			}
			buf, err = t.AppendDecode(buf[:0], coded)
			if err != nil {
				return n, errors.Wrapf(err, "decode %x", in)
			}
			if string(buf) != string(in) {
				return n, errors.Errorf("decode %x: got %x", in, buf)
			}
			n++
		}
	}
	return n, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "huffgen:", err)
	os.Exit(1)
}
