// -*- Mode: Go; indent-tabs-mode: t -*-

// Package dispatch is the single entry point of spec.md §4.1: it
// parses a device_spec URI, opens the matching transport backend,
// looks up the named driver in the registry, and hands the opened
// transport.Port to the driver's Factory. Grounded on the teacher's
// getClient/releaseClient pair (example/device-modbus/modbus.go),
// generalized from "one hard-coded protocol client" to "look up the
// driver by name, then open whichever transport its device_spec
// names."
package dispatch

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/registry"
	"github.com/gobraille/brld/internal/session"
	"github.com/gobraille/brld/internal/transport"
	"github.com/gobraille/brld/internal/transport/btport"
	"github.com/gobraille/brld/internal/transport/netport"
	"github.com/gobraille/brld/internal/transport/serialport"
	"github.com/gobraille/brld/internal/transport/usbport"
)

// defaultNetPort is used when a "net:" device_spec carries no
// explicit port.
const defaultNetPort = 8471

// Open resolves driverName against the registry, parses deviceSpec's
// transport scheme, opens that transport, and calls the driver's
// Factory with it. It returns *braille.Error with KindUnsupportedTransport
// when the driver does not support the requested scheme and
// KindOpenFailed when the transport itself fails to open.
func Open(driverName, deviceSpec string, params transport.OpenParams) (braille.Handle, error) {
	entry, ok := registry.Lookup(driverName)
	if !ok {
		return nil, errors.Wrapf(registry.ErrUnknownDriver, "dispatch: %q", driverName)
	}

	parsed, err := ParseDeviceSpec(deviceSpec)
	if err != nil {
		return nil, err
	}
	if !entry.SupportsTransport(parsed.Transport) {
		return nil, braille.NewError(driverName, braille.KindUnsupportedTransport,
			errors.Errorf("transport not supported by driver %q", driverName))
	}
	params.Address = parsed.Address

	sess := session.New(driverName, transportName(parsed.Transport))

	port, err := openTransport(parsed, params)
	if err != nil {
		return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
	}

	handle, err := entry.New(port, params, sess.ID)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	sess.Log.WithField("geometry", handle.Geometry()).Info("dispatch: driver opened")
	return &loggedHandle{Handle: handle, port: port, log: sess.Log}, nil
}

func transportName(t registry.Transport) string {
	switch t {
	case registry.TransportSerial:
		return "serial"
	case registry.TransportUSB:
		return "usb"
	case registry.TransportBluetooth:
		return "bluetooth"
	case registry.TransportNet:
		return "net"
	default:
		return "unknown"
	}
}

func openTransport(parsed ParsedSpec, params transport.OpenParams) (transport.Port, error) {
	switch parsed.Transport {
	case registry.TransportSerial:
		return serialport.Open(params)
	case registry.TransportUSB:
		sel, err := usbport.ParseSelector(parsed.Address)
		if err != nil {
			return nil, err
		}
		return usbport.Open(params, sel)
	case registry.TransportBluetooth:
		return btport.Open(params, parsed.Address, 0)
	case registry.TransportNet:
		return netport.Open(params, parsed.Address, defaultNetPort)
	default:
		return nil, errors.Errorf("dispatch: unhandled transport %v", parsed.Transport)
	}
}

// loggedHandle wraps a driver's Handle to guarantee Close always tears
// down the underlying transport.Port even if the driver's own Close
// forgets to, and to log every Close the way session-tagged driver
// operations do throughout this module.
type loggedHandle struct {
	braille.Handle
	port transport.Port
	log  *logrus.Entry
}

func (h *loggedHandle) Close() error {
	err := h.Handle.Close()
	if cerr := h.port.Close(); err == nil {
		err = cerr
	}
	h.log.Info("dispatch: handle closed")
	return err
}
