package comm

import (
	"bytes"
	"encoding/binary"
)

// Parser extracts frames of both dialects from a byte stream. Bytes may
// be fed in chunks of any size; the frames produced only depend on the
// concatenated input.
type Parser struct {
	buf []byte
}

// Feed appends received bytes.
func (p *Parser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Buffered returns the number of bytes waiting to be parsed.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset drops all buffered bytes.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// Next returns the next complete frame, or nil, nil if more bytes are
// needed. A *FramingError means a candidate frame was rejected; the parser
// skipped past it and Next may be called again.
func (p *Parser) Next() (*Frame, error) {
	start, dialect, found := scanHeader(p.buf)
	p.discard(start)
	if !found || len(p.buf) < MarkerSize+LengthSize {
		return nil, nil
	}
	length := int(binary.LittleEndian.Uint16(p.buf[MarkerSize:]))
	if length > MaxPayloadSize {
		p.discard(1)
		return nil, &FramingError{Dialect: dialect, Reason: ReasonLength, Length: length}
	}
	total := Overhead + length
	if len(p.buf) < total {
		return nil, nil
	}
	trailer := dialect.Trailer()
	if !bytes.Equal(p.buf[total-MarkerSize:total], trailer[:]) {
		p.discard(1)
		return nil, &FramingError{Dialect: dialect, Reason: ReasonTrailer, Length: length}
	}
	if total < MinFrameSize {
		p.discard(total)
		return nil, &FramingError{Dialect: dialect, Reason: ReasonShort, Length: length}
	}
	payload := make([]byte, length)
	copy(payload, p.buf[MarkerSize+LengthSize:])
	p.discard(total)
	return NewFrame(dialect, payload), nil
}

func (p *Parser) discard(n int) {
	if n <= 0 {
		return
	}
	p.buf = p.buf[:copy(p.buf, p.buf[n:])]
}

// scanHeader finds the first complete header. When none exists, it returns
// the offset of a trailing partial header (or the buffer length) so that
// everything before it can be dropped.
func scanHeader(buf []byte) (int, Dialect, bool) {
	for i := range buf {
		rest := buf[i:]
		for _, d := range dialects {
			header := d.Header()
			if len(rest) >= MarkerSize {
				if bytes.Equal(rest[:MarkerSize], header[:]) {
					return i, d, true
				}
			} else if bytes.Equal(rest, header[:len(rest)]) {
				return i, d, false
			}
		}
	}
	return len(buf), DialectConfig, false
}
