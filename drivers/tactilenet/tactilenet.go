// -*- Mode: Go; indent-tabs-mode: t -*-

// Package tactilenet drives a TactileNet display: a serial-to-network
// bridge that reaches the same escape-of-reserved wire protocol as
// drivers/vega40 over a "net:<host>[:port]" device_spec instead of a
// local serial port (spec.md §4.4 pattern 1 is transport-independent;
// dispatch already hands every driver a transport.Port regardless of
// backend). It shares vega40's escape framing through the same
// framing.EscapeCodec/Reader pair; its handshake, single-outstanding
// write policy and chord resolution are copies of vega40's kept in
// this package (see io.go), not shared code. opAck/opNak reuse
// EuroBraille/eu_clio.c's ACK (0x06) and NAK (0x15) byte values, same
// as vega40.
//
// Fixing one protocol per network-tunneled family, rather than
// running canutec's full auto-detect over TCP, is grounded on
// EuroBraille/eu_braille.c's brl_construct: USB, Bluetooth, and "net:"
// device specs there are all routed through a non-serial IO vtable
// (eubrl_ethernetIos and friends) and pinned directly to
// esysirisProtocol rather than left to auto-detect.
//
// Grounded on example/device-modbus/modbus.go's
// createTCPDevice/connectTCPDevice sequence for the Open shape, which
// is the teacher's own TCP-backed counterpart to its RTU path.
package tactilenet

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

const driverName = "tactilenet"

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
	probeBudget       = 1500 * time.Millisecond // a network hop warrants more slack than a local serial probe
	ackTimeout        = 800 * time.Millisecond
	keepaliveIdle     = 4 * time.Second
	pingMaxNoQuery    = 2
	maxMissingAcks    = 5
	nakTimeoutSubcode = framing.TimeoutSubcode
)

type model struct {
	TextColumns int
	Status      int
	Dots        table.DotsTable
}

var models = map[byte]model{
	0x01: {TextColumns: 40, Status: 2, Dots: table.Canonical},
	0x02: {TextColumns: 80, Status: 4, Dots: table.Canonical},
}

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

// Driver is a TactileNet handle.
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
	pendingCommand *braille.Command

	lastInput  time.Time
	pingsSent  int
	resizeFlag bool
	fatal      bool
}

// Open probes a TactileNet bridge over an already-connected
// transport.Port (a TCP socket, per dispatch's net: handling) and
// returns a bound handle.
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
		Transports: []registry.Transport{registry.TransportNet},
		New:        Open,
	})
}

// Close releases the handle. Idempotent.
func (d *Driver) Close() error { return nil }

// Geometry returns the probed display shape.
func (d *Driver) Geometry() braille.Geometry { return d.geometry }

// ResizeRequired always reports false: no hot-reattach packet is
// documented for this bridge.
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
