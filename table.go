package huffman

import (
	"math"

	"github.com/pkg/errors"
)

// Geometry lists the window width, in bits, of the lookup tables at each
// depth of the table tree. Depths past the end of the slice reuse the last
// width. Below the root a width is clamped to the longest code remaining in
// that subtree.
type Geometry []uint8

// DefaultGeometry resolves every HPACK code of up to ten bits, including
// pairs of five-bit codes, in one lookup.
var DefaultGeometry = Geometry{10, 7, 13}

const maxWidth = 24

func (g Geometry) width(depth int) uint8 {
	if depth >= len(g) {
		return g[len(g)-1]
	}
	return g[depth]
}

func (g Geometry) validate() error {
	if len(g) == 0 {
		return errors.Wrap(ErrBadGeometry, "no widths")
	}
	for i, w := range g {
		if w == 0 || w > maxWidth {
			return errors.Wrapf(ErrBadGeometry, "depth %d has width %d", i, w)
		}
	}
	return nil
}

type op uint8

const (
	opInvalid op = iota

	// main tables
	opEmit1
	opEmit2
	opEscape

	// tail tables
	opPadding // the remaining bits are padding
	opNext    // finish the pending code, continue at the root
)

// entry is one slot of a lookup table. bits is the number of bits retired
// by the entry; for escapes it is the whole window.
type entry struct {
	op   op
	bits uint8
	fail failKind
	sym  [2]byte
	next uint16
}

// level is one lookup table of the tree: every window at this level follows
// the same already-retired prefix.
type level struct {
	prefix    uint64
	prefixLen uint8
	width     uint8
	depth     uint8
	entries   []entry   // 1<<width slots
	tails     [][]entry // tails[r] has 1<<r slots, r < width

	node int32 // code tree node of prefix; build time only
}

// Table is an immutable lookup table set for one alphabet. It is safe for
// concurrent use by any number of decoders.
type Table struct {
	alphabet *Alphabet
	geometry Geometry
	levels   []level
}

// TableStats summarizes the size of a table set.
type TableStats struct {
	Levels      int
	Entries     int
	TailEntries int
	MaxDepth    int
	Emit2       int
}

type trieNode struct {
	child  [2]int32
	leaf   bool
	eos    bool
	sym    byte
	maxLen uint8 // longest code below this node, counted from the root
}

type builder struct {
	alphabet *Alphabet
	geometry Geometry
	trie     []trieNode
	t        *Table
	err      error
}

// Build compiles an alphabet into nested lookup tables.
func Build(a *Alphabet, g Geometry) (*Table, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := g.validate(); err != nil {
		return nil, err
	}

	b := &builder{
		alphabet: a,
		geometry: g,
		t:        &Table{alphabet: a, geometry: g},
	}
	b.buildTrie()

	// the root width is never clamped: wide roots are how pairs of short
	// codes resolve in a single lookup
	b.t.levels = append(b.t.levels, level{width: g.width(0), node: 0})
	for i := 0; i < len(b.t.levels) && b.err == nil; i++ {
		b.fill(i)
	}
	if b.err != nil {
		return nil, b.err
	}

	LogTableBuilt(a.Name, b.t)
	return b.t, nil
}

// MustBuild is like Build but panics on a configuration error.
func MustBuild(a *Alphabet, g Geometry) *Table {
	t, err := Build(a, g)
	if err != nil {
		panic(err)
	}
	return t
}

func (b *builder) buildTrie() {
	b.trie = []trieNode{{child: [2]int32{-1, -1}}}
	insert := func(c Code, eos bool) {
		n := int32(0)
		for i := int(c.Len) - 1; i >= 0; i-- {
			if c.Len > b.trie[n].maxLen {
				b.trie[n].maxLen = c.Len
			}
			bit := (c.Bits >> uint(i)) & 1
			if b.trie[n].child[bit] < 0 {
				b.trie = append(b.trie, trieNode{child: [2]int32{-1, -1}})
				b.trie[n].child[bit] = int32(len(b.trie) - 1)
			}
			n = b.trie[n].child[bit]
		}
		b.trie[n].leaf = true
		b.trie[n].eos = eos
		b.trie[n].sym = c.Sym
		b.trie[n].maxLen = c.Len
	}
	for _, c := range b.alphabet.Codes {
		insert(c, false)
	}
	if b.alphabet.EOS != nil {
		insert(*b.alphabet.EOS, true)
	}
}

func (b *builder) addLevel(prefix uint64, prefixLen uint8, node int32, depth uint8) uint16 {
	if len(b.t.levels) >= math.MaxUint16 {
		b.err = errors.Wrapf(ErrBadGeometry, "more than %d levels", math.MaxUint16)
		return 0
	}
	w := b.geometry.width(int(depth))
	if span := b.trie[node].maxLen - prefixLen; w > span {
		w = span
	}
	b.t.levels = append(b.t.levels, level{
		prefix:    prefix,
		prefixLen: prefixLen,
		width:     w,
		depth:     depth,
		node:      node,
	})
	return uint16(len(b.t.levels) - 1)
}

func (b *builder) fill(id int) {
	lv := b.t.levels[id]
	w := lv.width

	entries := make([]entry, 1<<w)
	for win := range entries {
		entries[win] = b.mainEntry(&lv, uint64(win))
	}

	tails := make([][]entry, w)
	for r := range tails {
		tails[r] = make([]entry, 1<<r)
		for v := range tails[r] {
			tails[r][v] = b.tailEntry(&lv, uint8(r), uint64(v))
		}
	}

	b.t.levels[id].entries = entries
	b.t.levels[id].tails = tails
}

func (b *builder) mainEntry(lv *level, win uint64) entry {
	w := lv.width
	n := lv.node
	for k := uint8(1); k <= w; k++ {
		n = b.trie[n].child[(win>>(w-k))&1]
		if n < 0 {
			return entry{op: opInvalid, fail: failCode}
		}
		if !b.trie[n].leaf {
			continue
		}
		if b.trie[n].eos {
			return entry{op: opInvalid, fail: failCode}
		}

		e := entry{op: opEmit1, bits: k, sym: [2]byte{b.trie[n].sym}}
		m := int32(0)
		for j := k + 1; j <= w; j++ {
			m = b.trie[m].child[(win>>(w-j))&1]
			if m < 0 {
				break
			}
			if b.trie[m].leaf {
				if !b.trie[m].eos {
					e.op = opEmit2
					e.bits = j
					e.sym[1] = b.trie[m].sym
				}
				break
			}
		}
		return e
	}

	next := b.addLevel(lv.prefix<<w|win, lv.prefixLen+w, n, lv.depth+1)
	return entry{op: opEscape, bits: w, next: next}
}

func (b *builder) tailEntry(lv *level, r uint8, v uint64) entry {
	a := b.alphabet
	path, pathLen := lv.prefix<<r|v, lv.prefixLen+r
	if a.isPadding(path, pathLen) {
		return entry{op: opPadding}
	}

	n := lv.node
	for k := uint8(1); k <= r; k++ {
		n = b.trie[n].child[(v>>(r-k))&1]
		if n < 0 {
			return entry{op: opInvalid, fail: failCode}
		}
		if !b.trie[n].leaf {
			continue
		}
		if b.trie[n].eos {
			return entry{op: opInvalid, fail: failCode}
		}
		// the rest is resolved by the root tail for r-k bits
		return entry{op: opNext, bits: k, sym: [2]byte{b.trie[n].sym}}
	}

	// short leftovers can only be padding; long ones are padding only if
	// they follow the pattern
	if pathLen <= a.MaxPadding || a.matchesPad(path, pathLen) {
		return entry{op: opInvalid, fail: failPadding}
	}
	return entry{op: opInvalid, fail: failTruncated}
}

// Alphabet returns the alphabet the table was built from, or nil for a
// table read back with ReadTable.
func (t *Table) Alphabet() *Alphabet { return t.alphabet }

// Geometry returns the requested window widths.
func (t *Table) Geometry() Geometry { return t.geometry }

// RootWidth returns the window width of the first level.
func (t *Table) RootWidth() int { return int(t.levels[0].width) }

// Stats reports the table set size.
func (t *Table) Stats() TableStats {
	s := TableStats{Levels: len(t.levels)}
	for i := range t.levels {
		lv := &t.levels[i]
		s.Entries += len(lv.entries)
		for _, tail := range lv.tails {
			s.TailEntries += len(tail)
		}
		if int(lv.depth) > s.MaxDepth {
			s.MaxDepth = int(lv.depth)
		}
		for _, e := range lv.entries {
			if e.op == opEmit2 {
				s.Emit2++
			}
		}
	}
	return s
}
