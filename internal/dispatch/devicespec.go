// -*- Mode: Go; indent-tabs-mode: t -*-
package dispatch

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/gobraille/brld/internal/registry"
)

// ParsedSpec is a device_spec URI (spec.md §4.1, §6) split into its
// transport kind and backend-specific address, the shape every
// backend's Open constructor already expects via transport.OpenParams.
type ParsedSpec struct {
	Transport registry.Transport
	Address   string
}

// ParseDeviceSpec parses "serial:<path>", "usb:<selector>",
// "bluetooth:<addr>", or "net:<host>[:port]" into a ParsedSpec.
func ParseDeviceSpec(spec string) (ParsedSpec, error) {
	scheme, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return ParsedSpec{}, errors.Errorf("dispatch: malformed device spec %q", spec)
	}
	switch scheme {
	case "serial":
		return ParsedSpec{Transport: registry.TransportSerial, Address: rest}, nil
	case "usb":
		return ParsedSpec{Transport: registry.TransportUSB, Address: rest}, nil
	case "bluetooth":
		return ParsedSpec{Transport: registry.TransportBluetooth, Address: rest}, nil
	case "net":
		return ParsedSpec{Transport: registry.TransportNet, Address: rest}, nil
	default:
		return ParsedSpec{}, errors.Errorf("dispatch: unknown transport scheme %q", scheme)
	}
}

