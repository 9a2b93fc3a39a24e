package optiline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/transport"
	"github.com/gobraille/brld/internal/transport/mocktransport"
)

// openWithUnsolicitedIdentify feeds an identify packet before Open is
// even called, simulating the device announcing itself the instant it
// enumerates, then opens against it.
func openWithUnsolicitedIdentify(t *testing.T, modelByte byte) (*Driver, *mocktransport.Port) {
	t.Helper()
	port := mocktransport.New()
	port.Feed([]byte{classIdentify << 4, modelByte})
	h, err := Open(port, transport.OpenParams{}, "test-session")
	require.NoError(t, err)
	return h.(*Driver), port
}

func TestOpenNeverSendsAProbeRequest(t *testing.T) {
	d, port := openWithUnsolicitedIdentify(t, 0x02)
	assert.Equal(t, 40, d.Geometry().TextColumns)
	assert.Empty(t, port.Writes(), "Open must not transmit anything; this family's identify is unsolicited")
}

func TestMinimalCycleWritesAllZerosThenAllOnes(t *testing.T) {
	d, port := openWithUnsolicitedIdentify(t, 0x02)

	zeros := make(braille.Cells, 40)
	require.NoError(t, d.WriteWindow(zeros))
	require.Len(t, port.Writes(), 1, "nothing has been sent since Open, so the elapsed-time refresh forces a full all-zeros frame")

	ones := make(braille.Cells, 40)
	for i := range ones {
		ones[i] = 1
	}
	require.NoError(t, d.WriteWindow(ones))
	require.Len(t, port.Writes(), 2)
	assert.Equal(t, classWriteWindow<<4, port.LastWrite()[0])
}

func TestUnsolicitedPowerdownTriggersImmediateRestart(t *testing.T) {
	d, port := openWithUnsolicitedIdentify(t, 0x01)

	port.Feed([]byte{classPowerdown << 4})
	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.Restart, cmd)

	// A second ReadCommand keeps returning RESTART; nothing recovers
	// the handle short of a fresh Open.
	cmd, err = d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.Restart, cmd)

	require.Error(t, d.WriteWindow(make(braille.Cells, 20)))
}

func TestPlainRoutingKeyEmitsRoute(t *testing.T) {
	d, _ := openWithUnsolicitedIdentify(t, 0x01)
	routingBytes := (d.geometry.TextColumns + 7) / 8

	press := func(indices ...int) []byte {
		payload := make([]byte, 1+routingBytes)
		for _, idx := range indices {
			payload[1+idx/8] |= 1 << uint(idx%8)
		}
		return payload
	}

	d.handleKeyEvent(press(2))
	d.handleKeyEvent(press())

	cmd, err := d.ReadCommand(context.Background(), braille.ContextScreen)
	require.NoError(t, err)
	assert.Equal(t, braille.CmdRoute(2), cmd)
}
