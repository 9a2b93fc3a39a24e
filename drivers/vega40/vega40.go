// -*- Mode: Go; indent-tabs-mode: t -*-

// Package vega40 drives the Vega 40-cell display family: serial at
// 9600/8/N/1, spec.md §4.4 framing pattern 1 (escape-of-reserved,
// escape byte 0x1B), XOR-free opcodes, single-outstanding ACK/NAK
// write discipline, routing keys (no sensor strips), and
// an elapsed-wall-time forced refresh (spec.md §9 open question 1,
// grounded on Albatross/braille.c's updateDisplay, which forces a
// full rewrite whenever time(NULL) != lastUpdate rather than counting
// calls).
//
// opAck/opNak reuse EuroBraille/eu_clio.c's own ACK (0x06) and NAK
// (0x15) byte values, and the keepalive budget (pingMaxNoQuery) is
// TSI/braille.c's PING_MAXNQUERY (2).
//
// Grounded on example/device-modbus/modbus.go's
// getRTUConfig/createRTUDevice/connectRTUDevice sequence for the
// Open/probe shape, generalized from Modbus register polling to an
// identity-request/reply handshake.
package vega40

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

const driverName = "vega40"

// Escape-of-reserved opcodes. The identity request/reply pair doubles
// as the keepalive ping (spec.md §4.4: "Issue a vendor-defined
// identity request").
const (
	opIdentifyRequest byte = 0x01
	opIdentifyReply   byte = 0x02
	opWriteWindow     byte = 0x10
	opWriteStatus     byte = 0x11
	opAck             byte = 0x06
	opNak             byte = 0x15
	opKeyEvent        byte = 0x20
)

const (
	probeBudget       = 500 * time.Millisecond
	ackTimeout        = 500 * time.Millisecond
	keepaliveIdle     = 4 * time.Second
	pingMaxNoQuery    = 2
	maxMissingAcks    = 5
	nakTimeoutSubcode = framing.TimeoutSubcode
)

// model describes one Vega 40 family variant, keyed by the identify
// reply's model byte (spec.md §4.4 point 5).
type model struct {
	TextColumns int
	Status      int
	Dots        table.DotsTable
}

var models = map[byte]model{
	0x01: {TextColumns: 40, Status: 2, Dots: table.Canonical},
	0x02: {TextColumns: 20, Status: 2, Dots: table.Canonical},
	0x03: {TextColumns: 80, Status: 4, Dots: table.Canonical},
}

// protocolState holds the one piece of the opcode table that isn't
// known until after probe: the key-event payload length, which
// depends on the model's routing-key count. A *protocolState is
// captured by the EscapeCodec's PayloadLen closure so the same Reader
// instance spans probe and post-probe traffic without re-parsing.
type protocolState struct {
	cells int
}

func (ps *protocolState) payloadLen(opcode byte) (int, bool) {
	switch opcode {
	case opIdentifyRequest:
		return 0, true
	case opIdentifyReply:
		return 2, true
	case opAck:
		return 0, true
	case opNak:
		return 1, true
	case opKeyEvent:
		if ps.cells == 0 {
			return 0, false
		}
		return 1 + (ps.cells+7)/8, true
	default:
		return 0, false
	}
}

// Driver is a Vega 40-family handle.
type Driver struct {
	port      transport.Port
	sessionID string

	geometry braille.Geometry
	dots     table.Translation

	proto  *protocolState
	reader *framing.Reader

	textEngine   *diff.Engine
	statusEngine *diff.Engine

	tx txState

	keyState       *keys.State
	routingOrder   []int
	pendingCommand *braille.Command

	lastInput  time.Time
	pingsSent  int
	resizeFlag bool
	fatal      bool
}

// Open probes a Vega 40 family device over port and returns a bound
// handle, or a *braille.Error on probe failure.
func Open(port transport.Port, params transport.OpenParams, sessionID string) (braille.Handle, error) {
	_ = port.Discard()

	proto := &protocolState{}
	codec := framing.EscapeCodec{Escape: 0x1B, PayloadLen: proto.payloadLen}
	reader := framing.NewReader(codec)
	start := time.Now()
	var reply []byte
	for time.Since(start) < probeBudget {
		buf := make([]byte, 64)
		n, err := port.Read(buf, true)
		if err != nil {
			return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
		}
		if n == 0 {
			if _, err := port.Write(codec.Encode(opIdentifyRequest, nil)); err != nil {
				return nil, braille.NewError(driverName, braille.KindOpenFailed, err)
			}
			continue
		}
		reader.Feed(buf[:n])
		if op, payload, ok := reader.Next(); ok && op == opIdentifyReply {
			reply = payload
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
		tx:           newTxState(m.TextColumns),
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

// Close releases the Vega 40 handle. Idempotent: a second Close is a
// no-op since the underlying transport.Port is itself idempotent.
func (d *Driver) Close() error { return nil }

// Geometry returns the probed display shape.
func (d *Driver) Geometry() braille.Geometry { return d.geometry }

// ResizeRequired reports and clears the hot-reattach flag. The Vega
// 40 family has no documented hot-reattach packet, so this always
// returns false; the field exists for symmetry with drivers that do.
func (d *Driver) ResizeRequired() bool {
	v := d.resizeFlag
	d.resizeFlag = false
	return v
}

// Capabilities advertises raw packet I/O and key codes; the Vega 40
// family has no auxiliary screen or firmness control.
func (d *Driver) Capabilities() braille.Capabilities {
	return braille.Capabilities{PacketIO: true, KeyCodes: true}
}

// ReadPacket implements braille.PacketIO.
func (d *Driver) ReadPacket(buf []byte) (int, error) {
	return 0, errors.New("vega40: ReadPacket not available while key interpretation is active")
}

// WritePacket implements braille.PacketIO.
func (d *Driver) WritePacket(payload []byte) error {
	_, err := d.port.Write(payload)
	return err
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
		op, payload, ok := d.reader.Next()
		if !ok {
			return nil
		}
		switch op {
		case opAck:
			d.handleAck()
		case opNak:
			subcode := byte(0)
			if len(payload) > 0 {
				subcode = payload[0]
			}
			d.handleNak(subcode)
		case opKeyEvent:
			d.handleKeyEvent(payload)
		}
	}
}
