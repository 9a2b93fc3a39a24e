package canutec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/framing"
	"github.com/gobraille/brld/internal/transport"
	"github.com/gobraille/brld/internal/transport/mocktransport"
)

var nativeCodec = framing.LengthCodec{STX: 0x02, ETX: 0x03}

// nativeSim answers identify requests as the native sub-protocol,
// so tests that don't care about detection order get there fastest.
type nativeSim struct {
	port      *mocktransport.Port
	modelByte byte
}

func newNativeSim(port *mocktransport.Port) *nativeSim {
	sim := &nativeSim{port: port, modelByte: 0x01}
	port.OnWrite(sim.onWrite)
	return sim
}

func (s *nativeSim) onWrite(data []byte) {
	r := nativeCodec.NewReader()
	r.Feed(data)
	payload, ok := r.Next()
	if !ok || len(payload) == 0 {
		return
	}
	if payload[0] == opIdentifyRequest {
		s.port.Feed(nativeCodec.Encode([]byte{opIdentifyReply, s.modelByte}))
	}
}

func openTestDriver(t *testing.T) (*Driver, *mocktransport.Port) {
	t.Helper()
	port := mocktransport.New()
	newNativeSim(port)
	h, err := Open(port, transport.OpenParams{}, "test-session")
	require.NoError(t, err)
	d := h.(*Driver)
	assert.Equal(t, "native", d.protoName)
	assert.Equal(t, 40, d.Geometry().TextColumns)
	return d, port
}

func TestOpenDetectsNativeProtocolFirst(t *testing.T) {
	openTestDriver(t)
}

// legacySim never answers the native probe, forcing detection to fall
// through to the legacy DLE sub-protocol, second in probeOrder.
type legacySim struct {
	port  *mocktransport.Port
	codec framing.DLECodec
}

func newLegacySim(port *mocktransport.Port) *legacySim {
	sim := &legacySim{port: port, codec: framing.DLECodec{SOH: 0x01, EOT: 0x04, DLE: 0x10}}
	port.OnWrite(sim.onWrite)
	return sim
}

func (s *legacySim) onWrite(data []byte) {
	r := s.codec.NewReader()
	r.Feed(data)
	payload, ok, valid := r.Next()
	if !ok || !valid || len(payload) == 0 {
		return
	}
	if payload[0] == opIdentifyRequest {
		s.port.Feed(s.codec.Encode([]byte{opIdentifyReply, 0x02}))
	}
}

func TestOpenFallsBackToLegacyProtocol(t *testing.T) {
	port := mocktransport.New()
	newLegacySim(port)
	h, err := Open(port, transport.OpenParams{}, "test-session")
	require.NoError(t, err)
	d := h.(*Driver)
	assert.Equal(t, "legacy", d.protoName)
	assert.Equal(t, 64, d.Geometry().TextColumns)
}

func TestMinimalCycleWritesAllZerosThenAllOnes(t *testing.T) {
	d, port := openTestDriver(t)
	opened := len(port.Writes()) // Open's identify request

	zeros := make(braille.Cells, 40)
	require.NoError(t, d.WriteWindow(zeros))
	require.Len(t, port.Writes(), opened+1, "nothing has been sent since Open, so the elapsed-time refresh forces a full all-zeros frame")

	ones := make(braille.Cells, 40)
	for i := range ones {
		ones[i] = 1
	}
	require.NoError(t, d.WriteWindow(ones))
	require.Len(t, port.Writes(), opened+2)
}

func TestHotReattachResizesGeometryAndSetsFlag(t *testing.T) {
	d, port := openTestDriver(t)
	assert.False(t, d.ResizeRequired())

	port.Feed(nativeCodec.Encode([]byte{opReattach, 0x02}))
	_, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)

	assert.Equal(t, 64, d.Geometry().TextColumns)
	assert.True(t, d.ResizeRequired(), "ResizeRequired reports the reattach once")
	assert.False(t, d.ResizeRequired(), "and clears itself on the next call")

	// The text engine must have been resized too, or the next write
	// would index out of range or never detect a difference correctly.
	wider := make(braille.Cells, 64)
	wider[63] = 1
	require.NoError(t, d.WriteWindow(wider))
}

func TestIgnoresUndocumentedReleasePacket(t *testing.T) {
	d, port := openTestDriver(t)

	port.Feed(nativeCodec.Encode([]byte{opUndocumentedRelease}))
	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.None, cmd)
	assert.False(t, d.fatal)
}

func TestPlainRoutingKeyEmitsRoute(t *testing.T) {
	d, _ := openTestDriver(t)
	routingBytes := (d.geometry.TextColumns + 7) / 8

	press := func(indices ...int) []byte {
		payload := make([]byte, 1+routingBytes)
		for _, idx := range indices {
			payload[1+idx/8] |= 1 << uint(idx%8)
		}
		return payload
	}

	d.handleKeyEvent(press(7))
	d.handleKeyEvent(press())

	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.CmdRoute(7), cmd)
}
