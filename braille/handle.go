// -*- Mode: Go; indent-tabs-mode: t -*-
package braille

import "context"

// Handle is a low-level device-specific interface used by the host
// screen reader to drive exactly one concrete braille display driver.
// It mirrors the shape of the teacher's ProtocolDriver interface
// (pkg/models/protocoldriver.go) but speaks the braille domain's
// operations instead of EdgeX's read/write-command abstraction.
//
// Invariant: Open establishes all of {transport, identity, geometry}
// or fails atomically — a handle on which Open returned an error must
// never be used. Close is idempotent.
type Handle interface {
	// Close releases the handle's transport and internal buffers. Safe
	// to call more than once.
	Close() error

	// WriteWindow pushes the text window's cell contents. cells must be
	// exactly Geometry().TextColumns*Geometry().TextRows long.
	WriteWindow(cells Cells) error

	// WriteStatus pushes the status cells, addressed separately from
	// the text window (GLOSSARY: Status cell). cells must be exactly
	// Geometry().StatusColumns long.
	WriteStatus(cells Cells) error

	// ReadCommand returns the next host command, None if nothing is
	// pending, or Restart if the driver hit a fatal transport state.
	// It must not block beyond an internal short timeout (spec.md §5).
	ReadCommand(ctx context.Context, sctx Context) (Command, error)

	// Geometry returns the display's fixed shape as of the last
	// successful Open or resize handling.
	Geometry() Geometry

	// ResizeRequired reports (and clears) whether the device reported a
	// new geometry since the last call — hot-reattach (spec.md §4.4).
	ResizeRequired() bool

	// Capabilities reports which optional operations this handle
	// supports (spec.md §6: packet_io, visual_display, firmness,
	// key_codes).
	Capabilities() Capabilities
}

// Capabilities flags the optional operations a concrete driver
// advertises to the host.
type Capabilities struct {
	PacketIO      bool
	VisualDisplay bool
	Firmness      bool
	KeyCodes      bool
}

// PacketIO is implemented by handles that advertise Capabilities.PacketIO
// (spec.md §4.6): pass-through raw packet I/O for applications that
// bypass key interpretation.
type PacketIO interface {
	ReadPacket(buf []byte) (int, error)
	WritePacket(payload []byte) error
}

// VisualDisplay is implemented by handles that advertise
// Capabilities.VisualDisplay: a host-readable text mirror of the
// braille window on devices with an auxiliary screen.
type VisualDisplay interface {
	WriteVisual(text string) error
}

// Firmness is implemented by handles that advertise
// Capabilities.Firmness: dot actuator strength control.
type Firmness interface {
	SetFirmness(level int) error
}

// Resettable is implemented by handles that can force a full
// re-probe without a full Close/Open cycle.
type Resettable interface {
	Reset() error
}
