package lumitech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/transport"
	"github.com/gobraille/brld/internal/transport/mocktransport"
)

// deviceSim answers an identify request with a fixed 32-cell model and
// otherwise stays silent: this family never ACKs a write.
type deviceSim struct{ port *mocktransport.Port }

func newDeviceSim(port *mocktransport.Port) *deviceSim {
	sim := &deviceSim{port: port}
	port.OnWrite(sim.onWrite)
	return sim
}

func (s *deviceSim) onWrite(data []byte) {
	r := codec.NewReader()
	r.Feed(data)
	payload, ok, valid := r.Next()
	if !ok || !valid || len(payload) == 0 {
		return
	}
	if payload[0] == opIdentifyRequest {
		s.port.Feed(codec.Encode([]byte{opIdentifyReply, 0x01}))
	}
}

func openTestDriver(t *testing.T) (*Driver, *mocktransport.Port) {
	t.Helper()
	port := mocktransport.New()
	newDeviceSim(port)
	h, err := Open(port, transport.OpenParams{}, "test-session")
	require.NoError(t, err)
	d := h.(*Driver)
	assert.Equal(t, 32, d.Geometry().TextColumns)
	return d, port
}

func TestOpenProbesModelAndGeometry(t *testing.T) {
	openTestDriver(t)
}

func TestMinimalCycleWritesAllZerosThenAllOnes(t *testing.T) {
	d, port := openTestDriver(t)
	opened := len(port.Writes()) // Open's identify request

	zeros := make(braille.Cells, 32)
	require.NoError(t, d.WriteWindow(zeros))
	assert.Len(t, port.Writes(), opened, "no change means no wire bytes")

	ones := make(braille.Cells, 32)
	for i := range ones {
		ones[i] = 1
	}
	require.NoError(t, d.WriteWindow(ones))
	require.Len(t, port.Writes(), opened+1)
}

func TestWriteCommitsImmediatelyWithoutAck(t *testing.T) {
	d, port := openTestDriver(t)
	opened := len(port.Writes()) // Open's identify request

	cells := make(braille.Cells, 32)
	cells[4] = 0x11
	require.NoError(t, d.WriteWindow(cells))
	require.Len(t, port.Writes(), opened+1)

	// Writing the identical buffer again produces no further bytes: the
	// free-running path must have committed the snapshot on send, not
	// waited for an acknowledgement that never arrives.
	require.NoError(t, d.WriteWindow(cells))
	assert.Len(t, port.Writes(), opened+1)
}

func TestForcedRefreshAfterTwelveUnchangedCalls(t *testing.T) {
	d, port := openTestDriver(t)
	opened := len(port.Writes()) // Open's identify request
	cells := make(braille.Cells, 32)
	cells[0] = 1
	require.NoError(t, d.WriteWindow(cells))
	require.Len(t, port.Writes(), opened+1)

	for i := 0; i < 12; i++ {
		require.NoError(t, d.WriteWindow(cells))
	}
	assert.Len(t, port.Writes(), opened+2, "the 12th identical call forces a full refresh frame")
}

func TestMovementKeyEmitsOnPressWithRepeatFlag(t *testing.T) {
	d, _ := openTestDriver(t)

	routingBytes := (d.geometry.TextColumns + 7) / 8
	payload := make([]byte, 1+routingBytes)
	payload[0] = 0x01 // pan left

	d.handleKeyEvent(payload)

	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, movementBlocks[0x01]|braille.FlagRepeat, cmd)

	// Release produces no second command: the press already emitted it.
	d.handleKeyEvent(make([]byte, 1+routingBytes))
	cmd, err = d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.None, cmd)
}

func TestNonMovementChordEmitsOnRelease(t *testing.T) {
	d, _ := openTestDriver(t)

	routingBytes := (d.geometry.TextColumns + 7) / 8
	payload := make([]byte, 1+routingBytes)
	payload[0] = 0x10 // set-mark function key

	d.handleKeyEvent(payload)
	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.None, cmd, "nothing is emitted until release")

	d.handleKeyEvent(make([]byte, 1+routingBytes))
	cmd, err = d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.BlockSetMark, cmd)
}
