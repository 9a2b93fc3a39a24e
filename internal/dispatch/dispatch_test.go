package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/registry"
	"github.com/gobraille/brld/internal/transport"
)

func TestParseDeviceSpec(t *testing.T) {
	cases := []struct {
		spec string
		want registry.Transport
		addr string
	}{
		{"serial:/dev/ttyUSB0", registry.TransportSerial, "/dev/ttyUSB0"},
		{"usb:0403:6001:0", registry.TransportUSB, "0403:6001:0"},
		{"bluetooth:AA:BB:CC:DD:EE:FF", registry.TransportBluetooth, "AA:BB:CC:DD:EE:FF"},
		{"net:display.local:8471", registry.TransportNet, "display.local:8471"},
	}
	for _, c := range cases {
		got, err := ParseDeviceSpec(c.spec)
		require.NoError(t, err, c.spec)
		assert.Equal(t, c.want, got.Transport, c.spec)
		assert.Equal(t, c.addr, got.Address, c.spec)
	}
}

func TestParseDeviceSpecMalformed(t *testing.T) {
	_, err := ParseDeviceSpec("not-a-spec")
	assert.Error(t, err)

	_, err = ParseDeviceSpec("carrierpigeon:whatever")
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("no-such-driver", "serial:/dev/ttyUSB0", transport.OpenParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrUnknownDriver)
}

func TestOpenRejectsUnsupportedTransport(t *testing.T) {
	registry.Register(registry.Entry{
		Name:       "dispatch-test-usb-only",
		Transports: []registry.Transport{registry.TransportUSB},
		New: func(p transport.Port, params transport.OpenParams, sessionID string) (braille.Handle, error) {
			t.Fatal("Factory must not be called when the transport is rejected")
			return nil, nil
		},
	})

	_, err := Open("dispatch-test-usb-only", "serial:/dev/ttyUSB0", transport.OpenParams{})
	require.Error(t, err)
	assert.True(t, braille.IsKind(err, braille.KindUnsupportedTransport))
}

func TestOpenWrapsTransportFailureAsOpenFailed(t *testing.T) {
	registry.Register(registry.Entry{
		Name:       "dispatch-test-serial",
		Transports: []registry.Transport{registry.TransportSerial},
		New: func(p transport.Port, params transport.OpenParams, sessionID string) (braille.Handle, error) {
			t.Fatal("Factory must not be called when the transport fails to open")
			return nil, nil
		},
	})

	_, err := Open("dispatch-test-serial", "serial:/nonexistent/path/that/cannot/exist", transport.OpenParams{})
	require.Error(t, err)
	assert.True(t, braille.IsKind(err, braille.KindOpenFailed))
}
