package vega40

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

var wireCodec = framing.EscapeCodec{Escape: 0x1B}

// deviceSim scripts a minimal Vega 40 device on the far end of a
// mocktransport.Port: it answers an identify request with a fixed
// 40-cell model and acknowledges writes, optionally NAKing the first
// write of a given opcode with a timeout subcode (spec.md §8 S3).
type deviceSim struct {
	port         *mocktransport.Port
	nakOnceOp    byte
	nakDelivered bool
}

func newDeviceSim(port *mocktransport.Port) *deviceSim {
	sim := &deviceSim{port: port}
	port.OnWrite(sim.onWrite)
	return sim
}

func (s *deviceSim) onWrite(data []byte) {
	if len(data) < 2 || data[0] != 0x1B {
		return
	}
	switch data[1] {
	case opIdentifyRequest:
		s.port.Feed(wireCodec.Encode(opIdentifyReply, []byte{0x01, 0x09}))
	case opWriteWindow, opWriteStatus:
		if s.nakOnceOp == data[1] && !s.nakDelivered {
			s.nakDelivered = true
			s.port.Feed(wireCodec.Encode(opNak, []byte{nakTimeoutSubcode}))
			return
		}
		s.port.Feed(wireCodec.Encode(opAck, nil))
	}
}

func openTestDriver(t *testing.T) (*Driver, *mocktransport.Port) {
	t.Helper()
	port := mocktransport.New()
	newDeviceSim(port)
	h, err := Open(port, transport.OpenParams{}, "test-session")
	require.NoError(t, err)
	d := h.(*Driver)
	assert.Equal(t, 40, d.Geometry().TextColumns)
	assert.Equal(t, 2, d.Geometry().StatusColumns)
	return d, port
}

func TestOpenProbesModelAndGeometry(t *testing.T) {
	openTestDriver(t)
}

func TestMinimalCycleWritesAllZerosThenAllOnes(t *testing.T) {
	d, port := openTestDriver(t)
	opened := len(port.Writes()) // Open's identify request

	zeros := make(braille.Cells, 40)
	require.NoError(t, d.WriteWindow(zeros))
	require.Len(t, port.Writes(), opened+1, "nothing has been sent since Open, so the elapsed-time refresh forces a full all-zeros frame")

	// Pump the ACK for that frame so the next write is sent rather than
	// queued behind it (single outstanding write).
	_, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)

	ones := make(braille.Cells, 40)
	for i := range ones {
		ones[i] = 1
	}
	require.NoError(t, d.WriteWindow(ones))
	require.Len(t, port.Writes(), opened+2)
	frame := port.LastWrite()
	assert.Equal(t, byte(0x1B), frame[0])
	assert.Equal(t, opWriteWindow, frame[1])
}

func TestDiffLimitedToMiddleCell(t *testing.T) {
	d, port := openTestDriver(t)
	require.NoError(t, d.WriteWindow(make(braille.Cells, 40)))
	// Let the ACK for that initial full refresh land so the next write
	// is sent rather than queued behind it.
	_, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)

	cells := make(braille.Cells, 40)
	cells[20] = 0xFF
	require.NoError(t, d.WriteWindow(cells))

	frame := port.LastWrite()
	// payload = [offsetHi, offsetLo, translated bytes...]; offset 20,
	// width 1 for a single changed cell in the middle of the buffer.
	assert.Equal(t, byte(0), frame[2])
	assert.Equal(t, byte(20), frame[3])
	assert.Len(t, frame[4:], 1)
}

func TestAckRetryDecrementsPayloadLimitAndResends(t *testing.T) {
	port := mocktransport.New()
	sim := newDeviceSim(port)
	sim.nakOnceOp = opWriteWindow

	h, err := Open(port, transport.OpenParams{}, "test-session")
	require.NoError(t, err)
	d := h.(*Driver)

	originalLimit := d.tx.payloadLimit
	cells := make(braille.Cells, 40)
	cells[5] = 0x03
	require.NoError(t, d.WriteWindow(cells))

	// The NAK response lands synchronously inside port.Write's onWrite
	// hook, but handleNak only runs once ReadCommand pumps it back in.
	_, err = d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)

	assert.Equal(t, originalLimit-1, d.tx.payloadLimit, "a timeout-kind NAK decrements output_payload_limit (floor 1)")
	assert.False(t, d.tx.outstanding, "a NAK clears the in-flight write so the next request re-sends")

	require.NoError(t, d.WriteWindow(cells))
	writes := port.Writes()
	last := writes[len(writes)-1]
	assert.Equal(t, opWriteWindow, last[1], "the re-sent frame still targets the window buffer")
}

func TestTwoRoutingKeyGestureEmitsCutBeginThenCutLine(t *testing.T) {
	d, _ := openTestDriver(t)

	routingBytes := (d.geometry.TextColumns + 7) / 8
	press := func(indices ...int) []byte {
		payload := make([]byte, 1+routingBytes)
		for _, idx := range indices {
			payload[1+idx/8] |= 1 << uint(idx%8)
		}
		return payload
	}

	d.handleKeyEvent(press(5))
	d.handleKeyEvent(press(5, 10))
	d.handleKeyEvent(press())

	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.BlockCutBegin+5, cmd)

	cmd, err = d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.BlockCutLine+10, cmd)
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

	d.handleKeyEvent(press(3))
	d.handleKeyEvent(press())

	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.CmdRoute(3), cmd)
}
