// -*- Mode: Go; indent-tabs-mode: t -*-

// Package canutec drives the Canutec display family, which is really
// three sub-protocols sharing one connector: a native fixed-header
// protocol (spec.md §4.4 pattern 3), a legacy DLE-sentinel protocol
// (pattern 2) still shipped on older firmware, and an escape-of-reserved
// compatibility protocol (pattern 1) used by the cheapest clones.
// Open auto-detects which one answers and binds to it for the life of
// the handle; probeOrder fixes the detection order bit-exactly
// (spec.md §9 point 3) so it can never silently change except as a
// deliberate code edit.
//
// probeOrder, the native/legacy framer shapes, and the inter-attempt
// settle delay are all grounded on
// _examples/original_source/BrailleDrivers/EuroBraille/eu_braille.c's
// brl_construct: when no protocol is given explicitly it tries
// esysirisProtocol first (native here: STX/length/ETX framing, see
// eu_esysiris.c) and only on failure closes the port,
// approximateDelay(700)s, reopens, and falls back to clioProtocol
// (legacy here: SOH/DLE-escape/EOT framing with a parity byte, see
// eu_clio.c; this driver neither sends nor expects ACK/NAK on it). The third candidate, compat, has no
// EuroBraille analogue and is instead grounded on
// Albatross/braille.c's 0xFF-sentinel unsolicited-announce framing,
// the pack's other example of a reserved-byte framer.
//
// This family also supports hot-reattach (spec.md §8 scenario S5: a
// reattach packet announces a new model id without a full Close/Open
// cycle) and silently ignores one undocumented packet its third
// sub-protocol occasionally emits on key release, grounded on
// TSI/braille.c's brl_readCommand: once a routing+function chord
// fires a command it sets ignore_routing and drops the release packet
// the display keeps resending for the still-held chord, rather than
// firing the command again (spec.md §9 open question 2).
//
// Grounded on example/device-modbus/modbus.go's
// getRTUConfig/createRTUDevice sequence for the Open/probe shape,
// generalized to try multiple candidate framers in sequence instead of
// one fixed RTU configuration.
package canutec

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

const driverName = "canutec"

const (
	opIdentifyRequest     byte = 0x01
	opIdentifyReply       byte = 0x02
	opWriteWindow         byte = 0x10
	opWriteStatus         byte = 0x11
	opKeyEvent            byte = 0x20
	opReattach            byte = 0x30
	opUndocumentedRelease byte = 0x3F
)

const (
	probeBudget   = 900 * time.Millisecond
	keepaliveIdle = 4 * time.Second
	pingMaxNoQuery = 2

	// canutecProtocolSettle mirrors eu_braille.c's approximateDelay(700)
	// between a failed esysiris attempt and the clio fallback: give the
	// display time to finish rejecting the first protocol's bytes before
	// the next candidate starts probing it.
	canutecProtocolSettle = 700 * time.Millisecond
)

// probeOrder is the fixed sub-protocol detection order (spec.md §9
// point 3), matching eu_braille.c's brl_construct autodetect order
// bit-exactly: native (esysiris-shaped) first, legacy (clio-shaped)
// second, compat (Albatross-shaped, no EuroBraille analogue) last.
var probeOrder = []string{"native", "legacy", "compat"}

type model struct {
	TextColumns int
	Status      int
	Dots        table.DotsTable
}

var models = map[byte]model{
	0x01: {TextColumns: 40, Status: 2, Dots: table.Canonical},
	0x02: {TextColumns: 64, Status: 4, Dots: table.Canonical},
}

// protocolState backs the compat sub-protocol's EscapeCodec.PayloadLen,
// the only candidate framer that needs a per-opcode length table
// instead of self-describing framing.
type protocolState struct {
	cells int
}

func (ps *protocolState) payloadLen(opcode byte) (int, bool) {
	switch opcode {
	case opIdentifyRequest:
		return 0, true
	case opIdentifyReply:
		return 2, true
	case opReattach:
		return 1, true
	case opUndocumentedRelease:
		return 0, true
	case opKeyEvent:
		if ps.cells == 0 {
			return 0, false
		}
		return 1 + (ps.cells+7)/8, true
	default:
		return 0, false
	}
}

// Driver is a Canutec-family handle bound to whichever sub-protocol
// Open detected.
type Driver struct {
	port      transport.Port
	sessionID string
	proto     subProtocol
	protoName string
	protoSt   *protocolState

	geometry braille.Geometry
	dots     table.Translation

	textEngine   *diff.Engine
	statusEngine *diff.Engine

	keyState       *keys.State
	pendingCommand *braille.Command

	lastInput  time.Time
	pingsSent  int
	resizeFlag bool
	fatal      bool
}

// Open auto-detects the sub-protocol in probeOrder and returns a bound
// handle.
func Open(port transport.Port, params transport.OpenParams, sessionID string) (braille.Handle, error) {
	_ = port.Discard()

	protoSt := &protocolState{}
	candidates := map[string]subProtocol{
		"native": newLengthAdapter(framing.LengthCodec{STX: 0x02, ETX: 0x03}),
		"legacy": newDLEAdapter(framing.DLECodec{SOH: 0x01, EOT: 0x04, DLE: 0x10}),
		"compat": newEscapeAdapter(framing.EscapeCodec{Escape: 0x1B, PayloadLen: protoSt.payloadLen}),
	}

	perProtoBudget := probeBudget / time.Duration(len(probeOrder))
	var reply []byte
	var chosen subProtocol
	var chosenName string
	for i, name := range probeOrder {
		if i > 0 {
			time.Sleep(canutecProtocolSettle)
		}
		sp := candidates[name]
		tryUntil := time.Now().Add(perProtoBudget)
		for time.Now().Before(tryUntil) {
			buf := make([]byte, 64)
			n, err := port.Read(buf, true)
			if err != nil {
				return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
			}
			if n == 0 {
				if _, err := port.Write(sp.encode(opIdentifyRequest, nil)); err != nil {
					return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
				}
				continue
			}
			sp.feed(buf[:n])
			if op, payload, ok := sp.next(); ok && op == opIdentifyReply && len(payload) >= 1 {
				reply = payload
				chosen = sp
				chosenName = name
				break
			}
		}
		if reply != nil {
			break
		}
		_ = port.Discard()
	}
	if reply == nil {
		return nil, braille.NewError(driverName, braille.KindProbeFailed, errors.New("no sub-protocol answered within probe budget"))
	}

	m, known := models[reply[0]]
	if !known {
		return nil, braille.NewError(driverName, braille.KindIdentityMismatch, errors.Errorf("unknown model byte 0x%02x", reply[0]))
	}
	protoSt.cells = m.TextColumns

	d := &Driver{
		port:      port,
		sessionID: sessionID,
		proto:     chosen,
		protoName: chosenName,
		protoSt:   protoSt,
		geometry: braille.Geometry{
			TextColumns:   m.TextColumns,
			TextRows:      1,
			StatusColumns: m.Status,
			HelpPageIndex: -1,
		},
		dots:         table.Build(m.Dots),
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
		Transports: []registry.Transport{registry.TransportSerial},
		New:        Open,
	})
}

// Close releases the handle. Idempotent.
func (d *Driver) Close() error { return nil }

// Geometry returns the probed (or most recently reattached) shape.
func (d *Driver) Geometry() braille.Geometry { return d.geometry }

// ResizeRequired reports and clears the hot-reattach flag (spec.md §8
// scenario S5).
func (d *Driver) ResizeRequired() bool {
	v := d.resizeFlag
	d.resizeFlag = false
	return v
}

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
		d.proto.feed(buf[:n])
	}
	for {
		op, payload, ok := d.proto.next()
		if !ok {
			return nil
		}
		switch op {
		case opKeyEvent:
			d.handleKeyEvent(payload)
		case opReattach:
			d.handleReattach(payload)
		case opUndocumentedRelease:
			// Deliberately dropped, same shape as TSI's ignore_routing:
			// the display resends this packet while the chord stays
			// physically held, and re-resolving it would re-fire the
			// already-delivered command (spec.md §9 open question 2).
		}
	}
}

func (d *Driver) handleReattach(payload []byte) {
	if len(payload) < 1 {
		return
	}
	m, known := models[payload[0]]
	if !known {
		return
	}
	d.geometry = braille.Geometry{
		TextColumns:   m.TextColumns,
		TextRows:      1,
		StatusColumns: m.Status,
		HelpPageIndex: -1,
	}
	d.dots = table.Build(m.Dots)
	d.protoSt.cells = m.TextColumns
	d.textEngine.Resize(m.TextColumns)
	d.statusEngine.Resize(m.Status)
	d.keyState.Resize(m.TextColumns, 0, 0, 0)
	d.resizeFlag = true
}
