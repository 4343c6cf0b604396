package huffman

import (
	"sort"

	"github.com/pkg/errors"
)

// Code is one codeword of a canonical Huffman code. Bits holds the code
// right-aligned in its low Len bits.
type Code struct {
	Sym  byte
	Bits uint32
	Len  uint8
}

// Alphabet is a prefix code over byte symbols plus an optional
// end-of-stream pseudo-symbol. The EOS code is never emitted; its high-order
// bits define valid padding. Without an EOS, padding is all ones.
type Alphabet struct {
	Name       string
	Codes      []Code
	EOS        *Code
	MaxPadding uint8 // longest accepted padding, in bits
}

// maxCodeLen bounds codes so that a prefix plus a window always fits the
// 64-bit paths used by the table generator.
const maxCodeLen = 32

// Validate checks that the alphabet is a complete prefix code.
func (a *Alphabet) Validate() error {
	if len(a.Codes) == 0 {
		return errors.Wrap(ErrBadAlphabet, "no codes")
	}
	if a.MaxPadding > 7 {
		return errors.Wrapf(ErrBadAlphabet, "padding of %d bits spans a whole byte", a.MaxPadding)
	}
	if a.EOS != nil && a.EOS.Len < a.MaxPadding {
		return errors.Wrapf(ErrBadAlphabet, "EOS code shorter than %d padding bits", a.MaxPadding)
	}

	var seen [256]bool
	all := make([]Code, 0, len(a.Codes)+1)
	for _, c := range a.Codes {
		if seen[c.Sym] {
			return errors.Wrapf(ErrBadAlphabet, "symbol %d defined twice", c.Sym)
		}
		seen[c.Sym] = true
		all = append(all, c)
	}
	if a.EOS != nil {
		all = append(all, *a.EOS)
	}

	var kraft uint64
	for _, c := range all {
		if c.Len == 0 || c.Len > maxCodeLen {
			return errors.Wrapf(ErrBadAlphabet, "symbol %d has length %d", c.Sym, c.Len)
		}
		if uint64(c.Bits) >= 1<<c.Len {
			return errors.Wrapf(ErrBadAlphabet, "symbol %d code 0x%x does not fit %d bits", c.Sym, c.Bits, c.Len)
		}
		kraft += 1 << (maxCodeLen - c.Len)
	}

	// Sorted by value-aligned-left, a prefix can only collide with the
	// codes immediately following it.
	sort.Slice(all, func(i, j int) bool {
		vi := uint64(all[i].Bits) << (maxCodeLen - all[i].Len)
		vj := uint64(all[j].Bits) << (maxCodeLen - all[j].Len)
		if vi != vj {
			return vi < vj
		}
		return all[i].Len < all[j].Len
	})
	for i := 1; i < len(all); i++ {
		p, c := all[i-1], all[i]
		if p.Len <= c.Len && c.Bits>>(c.Len-p.Len) == p.Bits {
			return errors.Wrapf(ErrBadAlphabet, "code of symbol %d is a prefix of symbol %d", p.Sym, c.Sym)
		}
	}

	if kraft != 1<<maxCodeLen {
		return errors.Wrap(ErrBadAlphabet, "code is incomplete")
	}
	return nil
}

// MinLen returns the length of the shortest emitted code.
func (a *Alphabet) MinLen() uint8 {
	var min uint8 = maxCodeLen
	for _, c := range a.Codes {
		if c.Len < min {
			min = c.Len
		}
	}
	return min
}

// padBits returns the n-bit padding pattern.
func (a *Alphabet) padBits(n uint8) uint64 {
	if a.EOS != nil {
		return uint64(a.EOS.Bits) >> (a.EOS.Len - n)
	}
	return 1<<n - 1
}

// matchesPad reports whether bits are the first n bits of the padding
// pattern, regardless of the padding length limit.
func (a *Alphabet) matchesPad(bits uint64, n uint8) bool {
	if a.EOS != nil && n > a.EOS.Len {
		return false
	}
	if a.EOS == nil && n >= 64 {
		return false
	}
	return bits == a.padBits(n)
}

func (a *Alphabet) isPadding(bits uint64, n uint8) bool {
	return n <= a.MaxPadding && a.matchesPad(bits, n)
}

// Canonical assigns canonical codes from per-symbol lengths. lengths[s] is
// the code length of symbol s, zero when s is not part of the alphabet.
// eosLen, when non-zero, adds an end-of-stream code that sorts after every
// symbol of the same length.
func Canonical(name string, lengths []uint8, eosLen uint8) (*Alphabet, error) {
	if len(lengths) > 256 {
		return nil, errors.Wrapf(ErrBadAlphabet, "%d symbols do not fit a byte", len(lengths))
	}

	type item struct {
		sym int // len(lengths) stands for EOS
		len uint8
	}
	items := make([]item, 0, len(lengths)+1)
	for s, l := range lengths {
		if l > 0 {
			items = append(items, item{s, l})
		}
	}
	if eosLen > 0 {
		items = append(items, item{len(lengths), eosLen})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].len != items[j].len {
			return items[i].len < items[j].len
		}
		return items[i].sym < items[j].sym
	})

	a := &Alphabet{Name: name, MaxPadding: 7}
	var code uint64
	var prev uint8
	for i, it := range items {
		if it.len > maxCodeLen {
			return nil, errors.Wrapf(ErrBadAlphabet, "symbol %d has length %d", it.sym, it.len)
		}
		if i > 0 {
			code = (code + 1) << (it.len - prev)
		}
		prev = it.len
		c := Code{Sym: byte(it.sym), Bits: uint32(code), Len: it.len}
		if it.sym == len(lengths) {
			eos := c
			eos.Sym = 0
			a.EOS = &eos
			continue
		}
		a.Codes = append(a.Codes, c)
	}
	if a.EOS != nil && a.EOS.Len < a.MaxPadding {
		a.MaxPadding = a.EOS.Len
	}
	return a, a.Validate()
}

// HPACK is the static Huffman code of RFC 7541 Appendix B.
var HPACK = hpackAlphabet()

func hpackAlphabet() *Alphabet {
	a := &Alphabet{Name: "hpack", MaxPadding: 7}
	for _, entry := range huffmanTable {
		c := Code{Bits: entry[1], Len: uint8(entry[2])}
		if entry[0] == 256 {
			a.EOS = &c
			continue
		}
		c.Sym = byte(entry[0])
		a.Codes = append(a.Codes, c)
	}
	return a
}

// Huffman table from RFC 7541 Appendix B: {symbol, code, length}.
var huffmanTable = [][3]uint32{
	{0, 0x1ff8, 13},       // symbol 0
	{1, 0x7fffd8, 23},     // symbol 1
	{2, 0xfffffe2, 28},    // symbol 2
	{3, 0xfffffe3, 28},    // symbol 3
	{4, 0xfffffe4, 28},    // symbol 4
	{5, 0xfffffe5, 28},    // symbol 5
	{6, 0xfffffe6, 28},    // symbol 6
	{7, 0xfffffe7, 28},    // symbol 7
	{8, 0xfffffe8, 28},    // symbol 8
	{9, 0xffffea, 24},     // symbol 9 (tab)
	{10, 0x3ffffffc, 30},  // symbol 10 (LF)
	{11, 0xfffffe9, 28},   // symbol 11
	{12, 0xfffffea, 28},   // symbol 12
	{13, 0x3ffffffd, 30},  // symbol 13 (CR)
	{14, 0xfffffeb, 28},   // symbol 14
	{15, 0xfffffec, 28},   // symbol 15
	{16, 0xfffffed, 28},   // symbol 16
	{17, 0xfffffee, 28},   // symbol 17
	{18, 0xfffffef, 28},   // symbol 18
	{19, 0xffffff0, 28},   // symbol 19
	{20, 0xffffff1, 28},   // symbol 20
	{21, 0xffffff2, 28},   // symbol 21
	{22, 0x3ffffffe, 30},  // symbol 22
	{23, 0xffffff3, 28},   // symbol 23
	{24, 0xffffff4, 28},   // symbol 24
	{25, 0xffffff5, 28},   // symbol 25
	{26, 0xffffff6, 28},   // symbol 26
	{27, 0xffffff7, 28},   // symbol 27
	{28, 0xffffff8, 28},   // symbol 28
	{29, 0xffffff9, 28},   // symbol 29
	{30, 0xffffffa, 28},   // symbol 30
	{31, 0xffffffb, 28},   // symbol 31
	{32, 0x14, 6},         // symbol 32 (space) - Most commonly used
	{33, 0x3f8, 10},       // symbol 33 (!)
	{34, 0x3f9, 10},       // symbol 34 (")
	{35, 0xffa, 12},       // symbol 35 (#)
	{36, 0x1ff9, 13},      // symbol 36 ($)
	{37, 0x15, 6},         // symbol 37 (%)
	{38, 0xf8, 8},         // symbol 38 (&)
	{39, 0x7fa, 11},       // symbol 39 (')
	{40, 0x3fa, 10},       // symbol 40 (()
	{41, 0x3fb, 10},       // symbol 41 ())
	{42, 0xf9, 8},         // symbol 42 (*)
	{43, 0x7fb, 11},       // symbol 43 (+)
	{44, 0xfa, 8},         // symbol 44 (,)
	{45, 0x16, 6},         // symbol 45 (-)
	{46, 0x17, 6},         // symbol 46 (.)
	{47, 0x18, 6},         // symbol 47 (/)
	{48, 0x0, 5},          // symbol 48 (0)
	{49, 0x1, 5},          // symbol 49 (1)
	{50, 0x2, 5},          // symbol 50 (2)
	{51, 0x19, 6},         // symbol 51 (3)
	{52, 0x1a, 6},         // symbol 52 (4)
	{53, 0x1b, 6},         // symbol 53 (5)
	{54, 0x1c, 6},         // symbol 54 (6)
	{55, 0x1d, 6},         // symbol 55 (7)
	{56, 0x1e, 6},         // symbol 56 (8)
	{57, 0x1f, 6},         // symbol 57 (9)
	{58, 0x5c, 7},         // symbol 58 (:)
	{59, 0xfb, 8},         // symbol 59 (;)
	{60, 0x7ffc, 15},      // symbol 60 (<)
	{61, 0x20, 6},         // symbol 61 (=)
	{62, 0xffb, 12},       // symbol 62 (>)
	{63, 0x3fc, 10},       // symbol 63 (?)
	{64, 0x1ffa, 13},      // symbol 64 (@)
	{65, 0x21, 6},         // symbol 65 (A)
	{66, 0x5d, 7},         // symbol 66 (B)
	{67, 0x5e, 7},         // symbol 67 (C)
	{68, 0x5f, 7},         // symbol 68 (D)
	{69, 0x60, 7},         // symbol 69 (E)
	{70, 0x61, 7},         // symbol 70 (F)
	{71, 0x62, 7},         // symbol 71 (G)
	{72, 0x63, 7},         // symbol 72 (H)
	{73, 0x64, 7},         // symbol 73 (I)
	{74, 0x65, 7},         // symbol 74 (J)
	{75, 0x66, 7},         // symbol 75 (K)
	{76, 0x67, 7},         // symbol 76 (L)
	{77, 0x68, 7},         // symbol 77 (M)
	{78, 0x69, 7},         // symbol 78 (N)
	{79, 0x6a, 7},         // symbol 79 (O)
	{80, 0x6b, 7},         // symbol 80 (P)
	{81, 0x6c, 7},         // symbol 81 (Q)
	{82, 0x6d, 7},         // symbol 82 (R)
	{83, 0x6e, 7},         // symbol 83 (S)
	{84, 0x6f, 7},         // symbol 84 (T)
	{85, 0x70, 7},         // symbol 85 (U)
	{86, 0x71, 7},         // symbol 86 (V)
	{87, 0x72, 7},         // symbol 87 (W)
	{88, 0xfc, 8},         // symbol 88 (X)
	{89, 0x73, 7},         // symbol 89 (Y)
	{90, 0xfd, 8},         // symbol 90 (Z)
	{91, 0x1ffb, 13},      // symbol 91 ([)
	{92, 0x7fff0, 19},     // symbol 92 (\)
	{93, 0x1ffc, 13},      // symbol 93 (])
	{94, 0x3ffc, 14},      // symbol 94 (^)
	{95, 0x22, 6},         // symbol 95 (_)
	{96, 0x7ffd, 15},      // symbol 96 (`)
	{97, 0x3, 5},          // symbol 97 (a)
	{98, 0x23, 6},         // symbol 98 (b)
	{99, 0x4, 5},          // symbol 99 (c)
	{100, 0x24, 6},        // symbol 100 (d)
	{101, 0x5, 5},         // symbol 101 (e)
	{102, 0x25, 6},        // symbol 102 (f)
	{103, 0x26, 6},        // symbol 103 (g)
	{104, 0x27, 6},        // symbol 104 (h)
	{105, 0x6, 5},         // symbol 105 (i)
	{106, 0x74, 7},        // symbol 106 (j)
	{107, 0x75, 7},        // symbol 107 (k)
	{108, 0x28, 6},        // symbol 108 (l)
	{109, 0x29, 6},        // symbol 109 (m)
	{110, 0x2a, 6},        // symbol 110 (n)
	{111, 0x7, 5},         // symbol 111 (o)
	{112, 0x2b, 6},        // symbol 112 (p)
	{113, 0x76, 7},        // symbol 113 (q)
	{114, 0x2c, 6},        // symbol 114 (r)
	{115, 0x8, 5},         // symbol 115 (s)
	{116, 0x9, 5},         // symbol 116 (t)
	{117, 0x2d, 6},        // symbol 117 (u)
	{118, 0x77, 7},        // symbol 118 (v)
	{119, 0x78, 7},        // symbol 119 (w)
	{120, 0x79, 7},        // symbol 120 (x)
	{121, 0x7a, 7},        // symbol 121 (y)
	{122, 0x7b, 7},        // symbol 122 (z)
	{123, 0x7ffe, 15},     // symbol 123 ({)
	{124, 0x7fc, 11},      // symbol 124 (|)
	{125, 0x3ffd, 14},     // symbol 125 (})
	{126, 0x1ffd, 13},     // symbol 126 (~)
	{127, 0xffffffc, 28},  // symbol 127 (DEL)
	{128, 0xfffe6, 20},    // symbol 128
	{129, 0x3fffd2, 22},   // symbol 129
	{130, 0xfffe7, 20},    // symbol 130
	{131, 0xfffe8, 20},    // symbol 131
	{132, 0x3fffd3, 22},   // symbol 132
	{133, 0x3fffd4, 22},   // symbol 133
	{134, 0x3fffd5, 22},   // symbol 134
	{135, 0x7fffd9, 23},   // symbol 135
	{136, 0x3fffd6, 22},   // symbol 136
	{137, 0x7fffda, 23},   // symbol 137
	{138, 0x7fffdb, 23},   // symbol 138
	{139, 0x7fffdc, 23},   // symbol 139
	{140, 0x7fffdd, 23},   // symbol 140
	{141, 0x7fffde, 23},   // symbol 141
	{142, 0xffffeb, 24},   // symbol 142
	{143, 0x7fffdf, 23},   // symbol 143
	{144, 0xffffec, 24},   // symbol 144
	{145, 0xffffed, 24},   // symbol 145
	{146, 0x3fffd7, 22},   // symbol 146
	{147, 0x7fffe0, 23},   // symbol 147
	{148, 0xffffee, 24},   // symbol 148
	{149, 0x7fffe1, 23},   // symbol 149
	{150, 0x7fffe2, 23},   // symbol 150
	{151, 0x7fffe3, 23},   // symbol 151
	{152, 0x7fffe4, 23},   // symbol 152
	{153, 0x1fffdc, 21},   // symbol 153
	{154, 0x3fffd8, 22},   // symbol 154
	{155, 0x7fffe5, 23},   // symbol 155
	{156, 0x3fffd9, 22},   // symbol 156
	{157, 0x7fffe6, 23},   // symbol 157
	{158, 0x7fffe7, 23},   // symbol 158
	{159, 0xffffef, 24},   // symbol 159
	{160, 0x3fffda, 22},   // symbol 160
	{161, 0x1fffdd, 21},   // symbol 161
	{162, 0xfffe9, 20},    // symbol 162
	{163, 0x3fffdb, 22},   // symbol 163
	{164, 0x3fffdc, 22},   // symbol 164
	{165, 0x7fffe8, 23},   // symbol 165
	{166, 0x7fffe9, 23},   // symbol 166
	{167, 0x1fffde, 21},   // symbol 167
	{168, 0x7fffea, 23},   // symbol 168
	{169, 0x3fffdd, 22},   // symbol 169
	{170, 0x3fffde, 22},   // symbol 170
	{171, 0xfffff0, 24},   // symbol 171
	{172, 0x1fffdf, 21},   // symbol 172
	{173, 0x3fffdf, 22},   // symbol 173
	{174, 0x7fffeb, 23},   // symbol 174
	{175, 0x7fffec, 23},   // symbol 175
	{176, 0x1fffe0, 21},   // symbol 176
	{177, 0x1fffe1, 21},   // symbol 177
	{178, 0x3fffe0, 22},   // symbol 178
	{179, 0x1fffe2, 21},   // symbol 179
	{180, 0x7fffed, 23},   // symbol 180
	{181, 0x3fffe1, 22},   // symbol 181
	{182, 0x7fffee, 23},   // symbol 182
	{183, 0x7fffef, 23},   // symbol 183
	{184, 0xfffea, 20},    // symbol 184
	{185, 0x3fffe2, 22},   // symbol 185
	{186, 0x3fffe3, 22},   // symbol 186
	{187, 0x3fffe4, 22},   // symbol 187
	{188, 0x7ffff0, 23},   // symbol 188
	{189, 0x3fffe5, 22},   // symbol 189
	{190, 0x3fffe6, 22},   // symbol 190
	{191, 0x7ffff1, 23},   // symbol 191
	{192, 0x3ffffe0, 26},  // symbol 192
	{193, 0x3ffffe1, 26},  // symbol 193
	{194, 0xfffeb, 20},    // symbol 194
	{195, 0x7fff1, 19},    // symbol 195
	{196, 0x3fffe7, 22},   // symbol 196
	{197, 0x7ffff2, 23},   // symbol 197
	{198, 0x3fffe8, 22},   // symbol 198
	{199, 0x1ffffec, 25},  // symbol 199
	{200, 0x3ffffe2, 26},  // symbol 200
	{201, 0x3ffffe3, 26},  // symbol 201
	{202, 0x3ffffe4, 26},  // symbol 202
	{203, 0x7ffffde, 27},  // symbol 203
	{204, 0x7ffffdf, 27},  // symbol 204
	{205, 0x3ffffe5, 26},  // symbol 205
	{206, 0xfffff1, 24},   // symbol 206
	{207, 0x1ffffed, 25},  // symbol 207
	{208, 0x7fff2, 19},    // symbol 208
	{209, 0x1fffe3, 21},   // symbol 209
	{210, 0x3ffffe6, 26},  // symbol 210
	{211, 0x7ffffe0, 27},  // symbol 211
	{212, 0x7ffffe1, 27},  // symbol 212
	{213, 0x3ffffe7, 26},  // symbol 213
	{214, 0x7ffffe2, 27},  // symbol 214
	{215, 0xfffff2, 24},   // symbol 215
	{216, 0x1fffe4, 21},   // symbol 216
	{217, 0x1fffe5, 21},   // symbol 217
	{218, 0x3ffffe8, 26},  // symbol 218
	{219, 0x3ffffe9, 26},  // symbol 219
	{220, 0xffffffd, 28},  // symbol 220
	{221, 0x7ffffe3, 27},  // symbol 221
	{222, 0x7ffffe4, 27},  // symbol 222
	{223, 0x7ffffe5, 27},  // symbol 223
	{224, 0xfffec, 20},    // symbol 224
	{225, 0xfffff3, 24},   // symbol 225
	{226, 0xfffed, 20},    // symbol 226
	{227, 0x1fffe6, 21},   // symbol 227
	{228, 0x3fffe9, 22},   // symbol 228
	{229, 0x1fffe7, 21},   // symbol 229
	{230, 0x1fffe8, 21},   // symbol 230
	{231, 0x7ffff3, 23},   // symbol 231
	{232, 0x3fffea, 22},   // symbol 232
	{233, 0x3fffeb, 22},   // symbol 233
	{234, 0x1ffffee, 25},  // symbol 234
	{235, 0x1ffffef, 25},  // symbol 235
	{236, 0xfffff4, 24},   // symbol 236
	{237, 0xfffff5, 24},   // symbol 237
	{238, 0x3ffffea, 26},  // symbol 238
	{239, 0x7ffff4, 23},   // symbol 239
	{240, 0x3ffffeb, 26},  // symbol 240
	{241, 0x7ffffe6, 27},  // symbol 241
	{242, 0x3ffffec, 26},  // symbol 242
	{243, 0x3ffffed, 26},  // symbol 243
	{244, 0x7ffffe7, 27},  // symbol 244
	{245, 0x7ffffe8, 27},  // symbol 245
	{246, 0x7ffffe9, 27},  // symbol 246
	{247, 0x7ffffea, 27},  // symbol 247
	{248, 0x7ffffeb, 27},  // symbol 248
	{249, 0xffffffe, 28},  // symbol 249
	{250, 0x7ffffec, 27},  // symbol 250
	{251, 0x7ffffed, 27},  // symbol 251
	{252, 0x7ffffee, 27},  // symbol 252
	{253, 0x7ffffef, 27},  // symbol 253
	{254, 0x7fffff0, 27},  // symbol 254
	{255, 0x3ffffee, 26},  // symbol 255
	{256, 0x3fffffff, 30}, // EOS symbol
}
