package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeCodecRoundTrip(t *testing.T) {
	codec := EscapeCodec{
		Escape: 0xFE,
		PayloadLen: func(op byte) (int, bool) {
			if op == 0x01 {
				return 3, true
			}
			return 0, false
		},
	}

	payload := []byte{0xFE, 0x10, 0x20} // includes the escape byte itself
	frame := codec.Encode(0x01, payload)

	r := NewReader(codec)
	r.Feed(frame)
	op, got, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, byte(0x01), op)
	assert.Equal(t, payload, got)
}

func TestEscapeCodecShortReads(t *testing.T) {
	codec := EscapeCodec{
		Escape: 0xFE,
		PayloadLen: func(op byte) (int, bool) { return 4, true },
	}
	frame := codec.Encode(0x02, []byte{1, 2, 3, 4})

	r := NewReader(codec)
	_, _, ok := r.Next()
	require.False(t, ok)

	for _, b := range frame {
		r.Feed([]byte{b})
	}
	op, payload, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, byte(0x02), op)
	assert.Equal(t, []byte{1, 2, 3, 4}, payload)
}

func TestEscapeCodecUnknownOpcodeSkipped(t *testing.T) {
	codec := EscapeCodec{
		Escape: 0xFE,
		PayloadLen: func(op byte) (int, bool) {
			if op == 0x05 {
				return 1, true
			}
			return 0, false
		},
	}
	garbage := []byte{0xFE, 0x99, 0x00}
	good := codec.Encode(0x05, []byte{0x42})

	r := NewReader(codec)
	r.Feed(append(garbage, good...))
	op, payload, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, byte(0x05), op)
	assert.Equal(t, []byte{0x42}, payload)
}

func TestDLECodecRoundTripAndChecksum(t *testing.T) {
	codec := DLECodec{SOH: 0x01, EOT: 0x04, DLE: 0x10}
	payload := []byte{0x10, 0x01, 0x04, 0x55} // every reserved byte, plus data

	frame := codec.Encode(payload)
	r := codec.NewReader()
	r.Feed(frame)
	got, ok, validChecksum := r.Next()
	require.True(t, ok)
	assert.True(t, validChecksum)
	assert.Equal(t, payload, got)
}

func TestDLECodecDetectsMutatedChecksum(t *testing.T) {
	codec := DLECodec{SOH: 0x01, EOT: 0x04, DLE: 0x10}
	payload := []byte{0x55, 0x66, 0x77}
	frame := codec.Encode(payload)

	// Mutate a single payload byte post-encode without recomputing the
	// checksum, modeling corruption in transit.
	for i, b := range frame {
		if b == 0x66 {
			frame[i] = 0x67
			break
		}
	}

	r := codec.NewReader()
	r.Feed(frame)
	_, ok, validChecksum := r.Next()
	require.True(t, ok)
	assert.False(t, validChecksum)
}

func TestLengthCodecRoundTrip(t *testing.T) {
	codec := LengthCodec{STX: 0x02, ETX: 0x03}
	payload := make([]byte, 300) // exercise the two-byte length field
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := codec.Encode(payload)

	r := codec.NewReader()
	r.Feed(frame[:5])
	_, ok := r.Next()
	require.False(t, ok)

	r.Feed(frame[5:])
	got, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestByteStreamCodecUnknownClassDiscarded(t *testing.T) {
	codec := ByteStreamCodec{
		ClassLen: func(class byte) (int, bool) {
			if class == 0x3 {
				return 2, true
			}
			return 0, false
		},
	}
	r := codec.NewReader()
	r.Feed([]byte{0x9F, 0x9F, 0x30, 0xAB})
	frame, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, []byte{0x30, 0xAB}, frame)
}

func TestChecksumHelpers(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	assert.Equal(t, byte(0x01^0x02^0x03), XOR(data))
	assert.Equal(t, byte(0x01+0x02+0x03), Sum8(data))

	mutated := []byte{0x01, 0x05, 0x03}
	assert.NotEqual(t, XOR(data), XOR(mutated))
	assert.NotEqual(t, Sum8(data), Sum8(mutated))
}
