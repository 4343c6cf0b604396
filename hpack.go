package huffman

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
)

// HeaderField represents an HTTP header name-value pair as per RFC 7541
type HeaderField struct {
	Name  string
	Value string
}

// Size is the RFC 7541 Section 4.1 size of the field.
func (f HeaderField) Size() int { return len(f.Name) + len(f.Value) + 32 }

// Static table from RFC 7541 Appendix A
var staticTable = []HeaderField{
	{"", ""},                             // 0 - not used (RFC 7541 Section 2.3.3)
	{":authority", ""},                   // 1
	{":method", "GET"},                   // 2
	{":method", "POST"},                  // 3
	{":path", "/"},                       // 4
	{":path", "/index.html"},             // 5
	{":scheme", "http"},                  // 6
	{":scheme", "https"},                 // 7
	{":status", "200"},                   // 8
	{":status", "204"},                   // 9
	{":status", "206"},                   // 10
	{":status", "304"},                   // 11
	{":status", "400"},                   // 12
	{":status", "404"},                   // 13
	{":status", "500"},                   // 14
	{"accept-charset", ""},               // 15
	{"accept-encoding", "gzip, deflate"}, // 16
	{"accept-language", ""},              // 17
	{"accept-ranges", ""},                // 18
	{"accept", ""},                       // 19
	{"access-control-allow-origin", ""},  // 20
	{"age", ""},                          // 21
	{"allow", ""},                        // 22
	{"authorization", ""},                // 23
	{"cache-control", ""},                // 24
	{"content-disposition", ""},          // 25
	{"content-encoding", ""},             // 26
	{"content-language", ""},             // 27
	{"content-length", ""},               // 28
	{"content-location", ""},             // 29
	{"content-range", ""},                // 30
	{"content-type", ""},                 // 31
	{"cookie", ""},                       // 32
	{"date", ""},                         // 33
	{"etag", ""},                         // 34
	{"expect", ""},                       // 35
	{"expires", ""},                      // 36
	{"from", ""},                         // 37
	{"host", ""},                         // 38
	{"if-match", ""},                     // 39
	{"if-modified-since", ""},            // 40
	{"if-none-match", ""},                // 41
	{"if-range", ""},                     // 42
	{"if-unmodified-since", ""},          // 43
	{"last-modified", ""},                // 44
	{"link", ""},                         // 45
	{"location", ""},                     // 46
	{"max-forwards", ""},                 // 47
	{"proxy-authenticate", ""},           // 48
	{"proxy-authorization", ""},          // 49
	{"range", ""},                        // 50
	{"referer", ""},                      // 51
	{"refresh", ""},                      // 52
	{"retry-after", ""},                  // 53
	{"server", ""},                       // 54
	{"set-cookie", ""},                   // 55
	{"strict-transport-security", ""},    // 56
	{"transfer-encoding", ""},            // 57
	{"user-agent", ""},                   // 58
	{"vary", ""},                         // 59
	{"via", ""},                          // 60
	{"www-authenticate", ""},             // 61
}

const (
	// DefaultDynamicTableSize is SETTINGS_HEADER_TABLE_SIZE's initial value.
	DefaultDynamicTableSize = 4096

	// DefaultMaxStringLength bounds a single string literal.
	DefaultMaxStringLength = 16 << 10
)

var decoderPool = sync.Pool{
	New: func() interface{} {
		return NewHeaderDecoder(DefaultDynamicTableSize)
	},
}

// HeaderDecoder decodes HPACK header blocks (RFC 7541) of one connection,
// keeping the dynamic table between blocks. Huffman-coded string literals
// go through the shared lookup table set.
type HeaderDecoder struct {
	table *Table

	dynamicTable     []HeaderField // newest first
	dynamicTableSize int
	maxTableSize     int // current limit, set by size updates
	maxAllowedSize   int // limit advertised to the peer

	// MaxStringLength bounds the decoded or raw length of one literal.
	MaxStringLength int
}

// NewHeaderDecoder creates a decoder using the RFC 7541 Huffman table.
func NewHeaderDecoder(maxTableSize int) *HeaderDecoder {
	return NewHeaderDecoderWithTable(DefaultTable(), maxTableSize)
}

// NewHeaderDecoderWithTable creates a decoder using t for Huffman literals.
func NewHeaderDecoderWithTable(t *Table, maxTableSize int) *HeaderDecoder {
	return &HeaderDecoder{
		table:           t,
		dynamicTable:    make([]HeaderField, 0, 16),
		maxTableSize:    maxTableSize,
		maxAllowedSize:  maxTableSize,
		MaxStringLength: DefaultMaxStringLength,
	}
}

// GetHeaderDecoder takes a reset decoder from the pool.
func GetHeaderDecoder() *HeaderDecoder {
	d := decoderPool.Get().(*HeaderDecoder)
	d.Reset()
	return d
}

// PutHeaderDecoder returns a decoder to the pool.
func PutHeaderDecoder(d *HeaderDecoder) {
	decoderPool.Put(d)
}

// Reset clears the dynamic table.
func (d *HeaderDecoder) Reset() {
	d.dynamicTable = d.dynamicTable[:0]
	d.dynamicTableSize = 0
	d.maxTableSize = d.maxAllowedSize
}

// SetMaxAllowedTableSize changes the table size advertised to the peer.
func (d *HeaderDecoder) SetMaxAllowedTableSize(size int) {
	d.maxAllowedSize = size
	if d.maxTableSize > size {
		d.updateMaxTableSize(size)
	}
}

// DynamicTableSize returns the current size of the dynamic table.
func (d *HeaderDecoder) DynamicTableSize() int { return d.dynamicTableSize }

// Decode decodes an HPACK header block per RFC 7541 Section 3, returning
// the fields in block order.
func (d *HeaderDecoder) Decode(data []byte) ([]HeaderField, error) {
	reader := bytes.NewReader(data)
	headers := make([]HeaderField, 0, 8)

	// size updates are only allowed before the first field, Section 4.2
	for reader.Len() > 0 {
		b, _ := reader.ReadByte()
		_ = reader.UnreadByte()

		switch {
		case b&0x80 != 0:
			// Indexed Header Field, Section 6.1
			index, err := ReadInteger(reader, 7)
			if err != nil {
				return nil, errors.Wrap(err, "indexed header")
			}
			field, err := d.getHeaderField(index)
			if err != nil {
				return nil, err
			}
			headers = append(headers, field)

		case b&0x40 != 0:
			// Literal with incremental indexing, Section 6.2.1
			field, err := d.readLiteral(reader, 6)
			if err != nil {
				return nil, err
			}
			headers = append(headers, field)
			d.addToDynamicTable(field)

		case b&0x20 != 0:
			// Dynamic table size update, Section 6.3
			if len(headers) > 0 {
				return nil, errors.Wrapf(ErrLateSizeUpdate, "after %d fields", len(headers))
			}
			newSize, err := ReadInteger(reader, 5)
			if err != nil {
				return nil, errors.Wrap(err, "table size update")
			}
			if newSize > d.maxAllowedSize {
				return nil, errors.Wrapf(ErrTableSizeTooLarge, "%d > %d", newSize, d.maxAllowedSize)
			}
			d.updateMaxTableSize(newSize)

		default:
			// Literal without indexing (0000) or never indexed (0001),
			// Sections 6.2.2 and 6.2.3
			field, err := d.readLiteral(reader, 4)
			if err != nil {
				return nil, err
			}
			headers = append(headers, field)
		}
	}

	return headers, nil
}

// DecodeMap decodes a header block into a map; later fields win.
func (d *HeaderDecoder) DecodeMap(data []byte) (map[string]string, error) {
	fields, err := d.Decode(data)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(fields))
	for _, f := range fields {
		headers[f.Name] = f.Value
	}
	return headers, nil
}

func (d *HeaderDecoder) readLiteral(reader *bytes.Reader, prefixBits int) (HeaderField, error) {
	index, err := ReadInteger(reader, prefixBits)
	if err != nil {
		return HeaderField{}, errors.Wrap(err, "literal name index")
	}

	var name string
	if index == 0 {
		name, err = d.ReadString(reader)
		if err != nil {
			return HeaderField{}, errors.Wrap(err, "literal name")
		}
	} else {
		field, err := d.getHeaderField(index)
		if err != nil {
			return HeaderField{}, err
		}
		name = field.Name
	}

	value, err := d.ReadString(reader)
	if err != nil {
		return HeaderField{}, errors.Wrapf(err, "value of %q", name)
	}
	return HeaderField{Name: name, Value: value}, nil
}

// ReadInteger reads an integer with an N-bit prefix per RFC 7541 Section 5.1.
// The bits above the prefix in the first byte are ignored.
func ReadInteger(reader *bytes.Reader, prefixBits int) (int, error) {
	if prefixBits < 1 || prefixBits > 8 {
		return 0, errors.Errorf("hpack: invalid prefix bits: %d", prefixBits)
	}

	b, err := reader.ReadByte()
	if err != nil {
		return 0, ErrUnexpectedEnd
	}

	mask := (1 << prefixBits) - 1
	i := int(b) & mask
	if i < mask {
		return i, nil
	}

	m := 0
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return 0, ErrUnexpectedEnd
		}

		i += (int(b) & 0x7f) << m
		m += 7

		if b&0x80 == 0 {
			return i, nil
		}
		if m > 28 {
			return 0, ErrIntegerOverflow
		}
	}
}

// ReadString reads a string literal per RFC 7541 Section 5.2, Huffman
// decoding it when the H bit is set.
func (d *HeaderDecoder) ReadString(reader *bytes.Reader) (string, error) {
	b, err := reader.ReadByte()
	if err != nil {
		return "", ErrUnexpectedEnd
	}
	huffmanEncoded := b&0x80 != 0
	_ = reader.UnreadByte()

	length, err := ReadInteger(reader, 7)
	if err != nil {
		return "", err
	}
	if length > reader.Len() {
		return "", errors.Wrapf(ErrUnexpectedEnd, "string of %d bytes, %d left", length, reader.Len())
	}
	if !huffmanEncoded && length > d.MaxStringLength {
		return "", errors.Wrapf(ErrStringTooLong, "%d bytes", length)
	}
	if length == 0 {
		return "", nil
	}

	data := make([]byte, length)
	_, _ = reader.Read(data)

	if !huffmanEncoded {
		return string(data), nil
	}

	out := make([]byte, 0, length*8/5)
	err = d.table.Decode(data, func(sym byte) error {
		if len(out) >= d.MaxStringLength {
			return ErrStringTooLong
		}
		out = append(out, sym)
		return nil
	})
	if err != nil {
		LogDecodeError(err, "hpack string literal", map[string]interface{}{"length": length})
		return "", err
	}
	LogHPACK("huffman_decode", len(out), length)
	return string(out), nil
}

// getHeaderField looks up an index per RFC 7541 Section 2.3.3
func (d *HeaderDecoder) getHeaderField(index int) (HeaderField, error) {
	if index == 0 {
		return HeaderField{}, errors.Wrap(ErrIndexOutOfRange, "index 0")
	}

	if index < len(staticTable) {
		return staticTable[index], nil
	}

	dynamicIndex := index - len(staticTable)
	if dynamicIndex >= len(d.dynamicTable) {
		return HeaderField{}, errors.Wrapf(ErrIndexOutOfRange, "index %d (dynamic table has %d entries)",
			index, len(d.dynamicTable))
	}

	return d.dynamicTable[dynamicIndex], nil
}

// addToDynamicTable inserts a field per RFC 7541 Section 4.4; a field larger
// than the whole table empties it.
func (d *HeaderDecoder) addToDynamicTable(field HeaderField) {
	fieldSize := field.Size()

	d.evictTo(d.maxTableSize - fieldSize)

	if d.dynamicTableSize+fieldSize <= d.maxTableSize {
		d.dynamicTable = append(d.dynamicTable, HeaderField{})
		copy(d.dynamicTable[1:], d.dynamicTable)
		d.dynamicTable[0] = field
		d.dynamicTableSize += fieldSize
	}
}

func (d *HeaderDecoder) updateMaxTableSize(newSize int) {
	d.maxTableSize = newSize
	d.evictTo(newSize)
}

func (d *HeaderDecoder) evictTo(size int) {
	for d.dynamicTableSize > size && len(d.dynamicTable) > 0 {
		evicted := d.dynamicTable[len(d.dynamicTable)-1]
		d.dynamicTable = d.dynamicTable[:len(d.dynamicTable)-1]
		d.dynamicTableSize -= evicted.Size()
	}
}
