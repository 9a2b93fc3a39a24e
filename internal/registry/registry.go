// -*- Mode: Go; indent-tabs-mode: t -*-

// Package registry is the compile-time driver registry spec.md §9
// calls for in place of the source's string-keyed dynamic driver
// loading: a build flag (which driver packages get import'd, hence
// Register'd from their own init()) selects what's linked, and a
// simple keyed map selects among the linked set at runtime. Grounded
// on the teacher's single-slot common.Driver ds_models.ProtocolDriver
// global (internal/common/globalvars.go), generalized from "one
// driver" to "a keyed set of drivers, each self-registering the way
// database/sql drivers do."
package registry

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/transport"
)

// Transport enumerates the device_spec URI schemes of spec.md §6.
type Transport int

const (
	TransportSerial Transport = iota
	TransportUSB
	TransportBluetooth
	TransportNet
)

// Factory constructs a driver-specific handle bound to an already
// opened Port and the parsed OpenParams. This is where a driver's own
// probe/handshake (spec.md §4.4) runs; Factory may block for the full
// probe budget (spec.md §5: "open MAY block for the full probe
// budget").
type Factory func(port transport.Port, params transport.OpenParams, sessionID string) (braille.Handle, error)

// Entry is one registered driver binding.
type Entry struct {
	Name       string
	Transports []Transport
	New        Factory
}

var (
	mu  sync.Mutex
	reg = map[string]Entry{}
)

// Register adds entry to the compile-time registry. Driver packages
// call this from their own init(), so only drivers actually imported
// by the final binary (per the build's import graph) are ever
// linked — the "build flag selects which drivers are linked" part of
// spec.md §9. Register panics on a duplicate name: that can only
// happen from a programming error (two packages claiming the same
// driver name), never from runtime input.
func Register(entry Entry) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := reg[entry.Name]; exists {
		panic("registry: driver already registered: " + entry.Name)
	}
	reg[entry.Name] = entry
}

// Lookup returns the registered entry for name.
func Lookup(name string) (Entry, bool) {
	mu.Lock()
	defer mu.Unlock()
	e, ok := reg[name]
	return e, ok
}

// Names returns every registered driver name, sorted, for diagnostics
// (cmd/brldprobe walks this to list available drivers).
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(reg))
	for n := range reg {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SupportsTransport reports whether entry declares support for t,
// used by dispatch to implement spec.md §4.1's "dispatch rejects a
// spec whose transport the selected driver does not support."
func (e Entry) SupportsTransport(t Transport) bool {
	for _, supported := range e.Transports {
		if supported == t {
			return true
		}
	}
	return false
}

// ErrUnknownDriver is returned by dispatch when the requested driver
// name has no registered entry.
var ErrUnknownDriver = errors.New("registry: unknown driver")
