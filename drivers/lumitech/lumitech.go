// -*- Mode: Go; indent-tabs-mode: t -*-

// Package lumitech drives the Lumitech display family: serial at
// 19200/8/O/1, spec.md §4.4 framing pattern 2 (DLE-sentinel,
// SOH/EOT/DLE), free-running writes (no ACK/NAK — §4.4: "Drivers
// without ACK simply rate-limit by the write_delay mechanism") and a
// call-count "jittery" forced refresh (spec.md §9 open question 1)
// plus chorded function keys including autorepeat-on-press movement
// commands (spec.md §4.5 step 3).
//
// The DLE codec's SOH/EOT/DLE byte values and the refresh cadence are
// both grounded in the EuroBraille driver sources: SOH=0x01/EOT=0x04/
// DLE=0x10 match EuroBraille/eu_clio.c's clio protocol exactly, and
// diff.DefaultJitteryPolicy{Calls: 12} matches TSI/braille.c's
// FULL_FRESHEN_EVERY 12 ("do a full update every nth writeWindow().
// This should be a little over every 0.5secs.") — a call-count
// cadence rather than the elapsed-time cadence vega40/canutec/
// optiline/tactilenet use.
//
// Grounded on example/device-modbus/modbus.go's getRTUConfig/
// createRTUDevice Open shape, generalized from a register-polling
// handshake to an identity-request/reply handshake over a
// sentinel-framed stream.
package lumitech

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

const driverName = "lumitech"

const (
	opIdentifyRequest byte = 0x01
	opIdentifyReply   byte = 0x02
	opWriteWindow     byte = 0x10
	opWriteStatus     byte = 0x11
	opKeyEvent        byte = 0x20
)

const (
	probeBudget    = 800 * time.Millisecond
	keepaliveIdle  = 4 * time.Second
	pingMaxNoQuery = 2
	baudRate       = 19200
	bitsPerChar    = 10 // 8 data bits + 1 parity + 1 stop
)

var codec = framing.DLECodec{SOH: 0x01, EOT: 0x04, DLE: 0x10}

type model struct {
	TextColumns int
	Status      int
	Dots        table.DotsTable
}

var models = map[byte]model{
	0x01: {TextColumns: 32, Status: 2, Dots: table.Canonical},
	0x02: {TextColumns: 42, Status: 2, Dots: table.Canonical},
}

// Driver is a Lumitech-family handle.
type Driver struct {
	port      transport.Port
	sessionID string

	geometry braille.Geometry
	dots     table.Translation

	reader *framing.DLEReader

	textEngine   *diff.Engine
	statusEngine *diff.Engine

	function uint64 // currently pressed function-key bitset, raw decode

	keyState       *keys.State
	pendingCommand *braille.Command

	nextWriteAt time.Time

	lastInput time.Time
	pingsSent int
	fatal     bool
}

// Open probes a Lumitech device and returns a bound handle.
func Open(port transport.Port, params transport.OpenParams, sessionID string) (braille.Handle, error) {
	_ = port.Discard()

	reader := codec.NewReader()
	start := time.Now()
	var reply []byte
	for time.Since(start) < probeBudget {
		buf := make([]byte, 64)
		n, err := port.Read(buf, true)
		if err != nil {
			return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
		}
		if n == 0 {
			if _, err := port.Write(codec.Encode([]byte{opIdentifyRequest})); err != nil {
				return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
			}
			continue
		}
		reader.Feed(buf[:n])
		for {
			payload, ok, validChecksum := reader.Next()
			if !ok {
				break
			}
			if !validChecksum || len(payload) == 0 {
				continue
			}
			if payload[0] == opIdentifyReply && len(payload) >= 2 {
				reply = payload[1:]
			}
		}
		if reply != nil {
			break
		}
	}
	if reply == nil {
		return nil, braille.NewError(driverName, braille.KindProbeFailed, errors.New("no identity reply within probe budget"))
	}

	m, known := models[reply[0]]
	if !known {
		return nil, braille.NewError(driverName, braille.KindIdentityMismatch, errors.Errorf("unknown model byte 0x%02x", reply[0]))
	}

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
		reader:       reader,
		textEngine:   diff.NewEngine(m.TextColumns, diff.DefaultJitteryPolicy),
		statusEngine: diff.NewEngine(m.Status, diff.DefaultJitteryPolicy),
		keyState:     keys.NewState(m.TextColumns, 0, 0, 0),
		lastInput:    time.Now(),
	}
	return d, nil
}

func init() {
	registry.Register(registry.Entry{
		Name:       driverName,
		Transports: []registry.Transport{registry.TransportSerial},
		New:        Open,
	})
}

// Close releases the handle. Idempotent.
func (d *Driver) Close() error { return nil }

// Geometry returns the probed display shape.
func (d *Driver) Geometry() braille.Geometry { return d.geometry }

// ResizeRequired always reports false: the Lumitech family has no
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
		payload, ok, validChecksum := d.reader.Next()
		if !ok {
			return nil
		}
		if !validChecksum || len(payload) == 0 {
			continue // spec.md §7 protocol_error: discarded, connection remains
		}
		if payload[0] == opKeyEvent {
			d.handleKeyEvent(payload[1:])
		}
	}
}
