package huffman

import "github.com/pkg/errors"

// ErrStreamClosed is returned by a StreamDecoder used after Close.
var ErrStreamClosed = errors.New("huffman: stream decoder closed")

// StreamDecoder decodes one Huffman-coded stream delivered in chunks. The
// bit buffer and table level carry over between Write calls, so the symbols
// and the final status match a one-shot Decode of the concatenated input.
type StreamDecoder struct {
	st     state
	sink   Sink
	err    error
	closed bool
}

// NewStreamDecoder returns a decoder feeding sink.
func NewStreamDecoder(t *Table, sink Sink) *StreamDecoder {
	return &StreamDecoder{st: state{levels: t.levels}, sink: sink}
}

// Write decodes as much of p as the buffered bits allow. Bits that do not
// yet complete a lookup window are held until the next Write or Close.
// Once a Write fails every later call returns the same error.
func (d *StreamDecoder) Write(p []byte) (int, error) {
	if d.closed {
		return 0, ErrStreamClosed
	}
	if d.err != nil {
		return 0, d.err
	}
	d.st.in = p
	d.err = d.st.run(d.sink, false)
	n := len(p) - len(d.st.in)
	d.st.in = nil
	return n, d.err
}

// Close marks the end of the stream and validates the padding.
func (d *StreamDecoder) Close() error {
	if d.closed {
		return d.err
	}
	d.closed = true
	if d.err != nil {
		return d.err
	}
	d.err = d.st.run(d.sink, true)
	return d.err
}

// Reset prepares the decoder for a new stream with the same table and sink.
func (d *StreamDecoder) Reset() {
	d.st = state{levels: d.st.levels}
	d.err = nil
	d.closed = false
}

// Buffered returns the number of input bits held for the next lookup.
func (d *StreamDecoder) Buffered() int { return int(d.st.nbits) }
