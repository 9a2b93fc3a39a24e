package tactilenet

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

	_, err = d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)

	assert.Equal(t, originalLimit-1, d.tx.payloadLimit)
	assert.False(t, d.tx.outstanding)

	require.NoError(t, d.WriteWindow(cells))
	writes := port.Writes()
	assert.Equal(t, opWriteWindow, writes[len(writes)-1][1])
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

	d.handleKeyEvent(press(9))
	d.handleKeyEvent(press())

	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.CmdRoute(9), cmd)
}
