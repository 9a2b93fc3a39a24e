// -*- Mode: Go; indent-tabs-mode: t -*-

// Package optiline drives the Optiline display family over USB
// (spec.md §4.4 framing pattern 4, idiosyncratic bytestream: the
// leading byte's high nibble selects a packet class, unknown classes
// are discarded one byte at a time). Unlike every other family in
// this module, Open never transmits an identify request: the device
// announces itself unsolicited the moment it is plugged in and
// enumerated (spec.md §4.4 point 5), so Open only listens. This
// passive-wait shape is grounded on Albatross/braille.c's brl_open,
// which never probes either — it just waits for the display to
// announce itself with an unsolicited 0xFF byte. The family also
// signals its own power-down unsolicited (spec.md §8 scenario S6),
// which this driver turns into an immediate RESTART rather than
// waiting out an ACK-timeout counter it doesn't have.
//
// Grounded on example/device-modbus/modbus.go's
// createTCPDevice/connectTCPDevice open-then-listen shape, generalized
// from an active TCP connect to a passive USB enumerate-and-wait.
package optiline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/diff"
	"github.com/gobraille/brld/internal/framing"
	"github.com/gobraille/brld/internal/keys"
	"github.com/gobraille/brld/internal/registry"
	"github.com/gobraille/brld/internal/table"
	"github.com/gobraille/brld/internal/transport"
)

const driverName = "optiline"

// Packet classes (high nibble of the leading byte).
const (
	classIdentify  byte = 0x1
	classKeyEvent  byte = 0x2
	classPowerdown byte = 0x3
)

const (
	probeBudget    = 1500 * time.Millisecond
	keepaliveIdle  = 4 * time.Second
	pingMaxNoQuery = 2
)

type model struct {
	TextColumns int
	Status      int
	Dots        table.DotsTable
}

var models = map[byte]model{
	0x01: {TextColumns: 20, Status: 2, Dots: table.Canonical},
	0x02: {TextColumns: 40, Status: 2, Dots: table.Canonical},
}

// protocolState backs the ByteStreamCodec's ClassLen: only the
// key-event class's length depends on the post-probe cell count.
type protocolState struct {
	cells int
}

func (ps *protocolState) classLen(class byte) (int, bool) {
	switch class {
	case classIdentify:
		return 2, true
	case classPowerdown:
		return 1, true
	case classKeyEvent:
		if ps.cells == 0 {
			return 0, false
		}
		return 2 + (ps.cells+7)/8, true
	default:
		return 0, false
	}
}

// Driver is an Optiline-family handle.
type Driver struct {
	port      transport.Port
	sessionID string

	geometry braille.Geometry
	dots     table.Translation

	proto  *protocolState
	reader *framing.ByteStreamReader

	textEngine   *diff.Engine
	statusEngine *diff.Engine

	keyState       *keys.State
	pendingCommand *braille.Command

	lastInput time.Time
	pingsSent int
	fatal     bool
}

// Open listens passively for the unsolicited identify packet this
// family sends on enumeration; it never writes an identify request of
// its own (spec.md §4.4 point 5).
func Open(port transport.Port, params transport.OpenParams, sessionID string) (braille.Handle, error) {
	proto := &protocolState{}
	reader := framing.ByteStreamCodec{ClassLen: proto.classLen}.NewReader()

	start := time.Now()
	var reply []byte
	for time.Since(start) < probeBudget {
		buf := make([]byte, 64)
		n, err := port.Read(buf, true)
		if err != nil {
			return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
		}
		if n == 0 {
			continue
		}
		reader.Feed(buf[:n])
		if frame, ok := reader.Next(); ok && frame[0]>>4 == classIdentify {
			reply = frame[1:]
			break
		}
	}
	if reply == nil {
		return nil, braille.NewError(driverName, braille.KindProbeFailed, errors.New("no unsolicited identify packet within probe budget"))
	}

	m, known := models[reply[0]]
	if !known {
		return nil, braille.NewError(driverName, braille.KindIdentityMismatch, errors.Errorf("unknown model byte 0x%02x", reply[0]))
	}
	proto.cells = m.TextColumns

	d := &Driver{
		port:      port,
		sessionID: sessionID,
		geometry: braille.Geometry{
			TextColumns:   m.TextColumns,
			TextRows:      1,
			StatusColumns: m.Status,
			HelpPageIndex: -1,
		},
		dots:         table.Build(m.Dots),
		proto:        proto,
		reader:       reader,
		textEngine:   diff.NewEngine(m.TextColumns, diff.DefaultElapsedPolicy),
		statusEngine: diff.NewEngine(m.Status, diff.DefaultElapsedPolicy),
		keyState:     keys.NewState(m.TextColumns, 0, 0, 0),
		lastInput:    time.Now(),
	}
	return d, nil
}

func init() {
	registry.Register(registry.Entry{
		Name:       driverName,
		Transports: []registry.Transport{registry.TransportUSB},
		New:        Open,
	})
}

// Close releases the handle. Idempotent.
func (d *Driver) Close() error { return nil }

// Geometry returns the probed display shape.
func (d *Driver) Geometry() braille.Geometry { return d.geometry }

// ResizeRequired always reports false: the Optiline family has no
// documented hot-reattach packet.
func (d *Driver) ResizeRequired() bool { return false }

// Capabilities advertises key codes only.
func (d *Driver) Capabilities() braille.Capabilities {
	return braille.Capabilities{KeyCodes: true}
}

func (d *Driver) pumpIncoming(ctx context.Context) error {
	buf := make([]byte, 256)
	ready, err := d.port.Await(20 * time.Millisecond)
	if err != nil {
		return braille.NewError(driverName, braille.KindIOError, err)
	}
	if !ready {
		return nil
	}
	n, err := d.port.Read(buf, false)
	if err != nil {
		return braille.NewError(driverName, braille.KindIOError, err)
	}
	if n > 0 {
		d.lastInput = time.Now()
		d.pingsSent = 0
		d.reader.Feed(buf[:n])
	}
	for {
		frame, ok := d.reader.Next()
		if !ok {
			return nil
		}
		switch frame[0] >> 4 {
		case classKeyEvent:
			d.handleKeyEvent(frame[1:])
		case classPowerdown:
			// Unsolicited power-down (spec.md §8 scenario S6): there is
			// no ACK-timeout counter to exhaust here, so RESTART fires
			// the moment the packet is seen.
			d.fatal = true
		}
	}
}
