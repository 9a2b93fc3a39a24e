// -*- Mode: Go; indent-tabs-mode: t -*-
package framing

// ByteStreamCodec implements spec.md §4.4 pattern 4: idiosyncratic
// bytestream. The first byte's high nibble selects a packet class;
// a length table maps class to total frame length (including the
// leading byte); unknown classes are silently discarded one byte at a
// time, exactly as spec.md's wording describes.
type ByteStreamCodec struct {
	// ClassLen returns the total frame length for the high nibble of
	// the leading byte, and false for a class the driver doesn't
	// recognize.
	ClassLen func(class byte) (int, bool)
}

// ByteStreamReader reassembles idiosyncratic-bytestream frames.
type ByteStreamReader struct {
	codec ByteStreamCodec
	buf   []byte
}

// NewReader returns a ByteStreamReader for codec.
func (c ByteStreamCodec) NewReader() *ByteStreamReader { return &ByteStreamReader{codec: c} }

// Feed appends newly read bytes.
func (r *ByteStreamReader) Feed(data []byte) { r.buf = append(r.buf, data...) }

// Next extracts one complete frame (including its leading byte). ok
// is false when more bytes are needed.
func (r *ByteStreamReader) Next() (frame []byte, ok bool) {
	for {
		if len(r.buf) == 0 {
			return nil, false
		}
		class := r.buf[0] >> 4
		n, known := r.codec.ClassLen(class)
		if !known {
			r.buf = r.buf[1:]
			continue
		}
		if len(r.buf) < n {
			return nil, false
		}
		frame = append([]byte(nil), r.buf[:n]...)
		r.buf = r.buf[n:]
		return frame, true
	}
}
