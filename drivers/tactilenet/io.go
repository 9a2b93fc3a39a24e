// -*- Mode: Go; indent-tabs-mode: t -*-
package tactilenet

import (
	"time"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/diff"
)

// txState is the same single-outstanding ACK/NAK discipline as
// drivers/vega40's (spec.md §4.4), duplicated rather than imported
// because it closes over this package's own opcode constants; the
// shared part is internal/framing, not the vega40 package itself.
type txState struct {
	outstanding bool
	sentAt      time.Time

	snapshot                     []byte
	remainingStart, remainingEnd int
	hasRemaining                 bool

	lastChunkStart, lastChunkEnd int

	target *diff.Engine
	opcode byte

	pendingWindow    []byte
	hasPendingWindow bool
	pendingStatus    []byte
	hasPendingStatus bool

	payloadLimit int
	missingAcks  int
}

func newTxState(cells int) txState {
	limit := cells
	if limit < 1 {
		limit = 1
	}
	return txState{payloadLimit: limit}
}

// WriteWindow implements braille.Handle.
func (d *Driver) WriteWindow(cells braille.Cells) error {
	return d.write(d.textEngine, opWriteWindow, cells)
}

// WriteStatus implements braille.Handle.
func (d *Driver) WriteStatus(cells braille.Cells) error {
	return d.write(d.statusEngine, opWriteStatus, cells)
}

func (d *Driver) write(engine *diff.Engine, opcode byte, cells braille.Cells) error {
	if d.fatal {
		return braille.NewError(driverName, braille.KindIOError, errNotOpen)
	}
	if engine.Len() != len(cells) {
		return braille.NewError(driverName, braille.KindProtocolError, errBadCellCount)
	}

	if d.tx.outstanding {
		if opcode == opWriteWindow {
			d.tx.pendingWindow = append([]byte(nil), cells...)
			d.tx.hasPendingWindow = true
		} else {
			d.tx.pendingStatus = append([]byte(nil), cells...)
			d.tx.hasPendingStatus = true
		}
		return nil
	}

	return d.startWrite(engine, opcode, cells)
}

func (d *Driver) startWrite(engine *diff.Engine, opcode byte, cells []byte) error {
	r := engine.Diff(cells)
	if r.Empty {
		return nil
	}

	d.tx = txState{
		outstanding:      true,
		sentAt:           time.Now(),
		snapshot:         append([]byte(nil), cells...),
		target:           engine,
		opcode:           opcode,
		payloadLimit:     d.tx.payloadLimit,
		missingAcks:      d.tx.missingAcks,
		pendingWindow:    d.tx.pendingWindow,
		hasPendingWindow: d.tx.hasPendingWindow,
		pendingStatus:    d.tx.pendingStatus,
		hasPendingStatus: d.tx.hasPendingStatus,
	}
	return d.sendChunk(r.Start, r.End)
}

func (d *Driver) sendChunk(start, end int) error {
	limit := d.tx.payloadLimit
	if limit < 1 {
		limit = 1
	}
	chunkEnd := end
	if chunkEnd-start+1 > limit {
		chunkEnd = start + limit - 1
		d.tx.hasRemaining = true
		d.tx.remainingStart = chunkEnd + 1
		d.tx.remainingEnd = end
	} else {
		d.tx.hasRemaining = false
	}

	translated := make([]byte, chunkEnd-start+1)
	for i := range translated {
		translated[i] = d.dots.Out[d.tx.snapshot[start+i]]
	}
	payload := append([]byte{byte(start >> 8), byte(start)}, translated...)
	frame := writeCodec.Encode(d.tx.opcode, payload)

	if _, err := d.port.Write(frame); err != nil {
		return braille.NewError(driverName, braille.KindIOError, err)
	}
	d.tx.lastChunkStart, d.tx.lastChunkEnd = start, chunkEnd
	d.tx.sentAt = time.Now()
	return nil
}

var writeCodec = codecEncoder{escape: 0x1B}

type codecEncoder struct{ escape byte }

func (c codecEncoder) Encode(opcode byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)*2+2)
	out = append(out, c.escape, opcode)
	for _, b := range payload {
		if b == c.escape {
			out = append(out, c.escape)
		}
		out = append(out, b)
	}
	return out
}

func (d *Driver) handleAck() {
	if !d.tx.outstanding {
		return
	}
	d.tx.missingAcks = 0
	d.tx.target.CommitRange(d.tx.snapshot, d.tx.lastChunkStart, d.tx.lastChunkEnd)

	if d.tx.hasRemaining {
		start, end := d.tx.remainingStart, d.tx.remainingEnd
		_ = d.sendChunk(start, end)
		return
	}

	d.tx.outstanding = false
	switch {
	case d.tx.hasPendingWindow:
		pending := d.tx.pendingWindow
		d.tx.hasPendingWindow = false
		d.tx.pendingWindow = nil
		_ = d.startWrite(d.textEngine, opWriteWindow, pending)
	case d.tx.hasPendingStatus:
		pending := d.tx.pendingStatus
		d.tx.hasPendingStatus = false
		d.tx.pendingStatus = nil
		_ = d.startWrite(d.statusEngine, opWriteStatus, pending)
	}
}

func (d *Driver) handleNak(subcode byte) {
	if !d.tx.outstanding {
		return
	}
	if subcode == nakTimeoutSubcode {
		if d.tx.payloadLimit > 1 {
			d.tx.payloadLimit--
		}
	}
	d.tx.outstanding = false
	d.tx.hasRemaining = false
	d.tx.hasPendingWindow = false
	d.tx.pendingWindow = nil
	d.tx.hasPendingStatus = false
	d.tx.pendingStatus = nil
}

func (d *Driver) checkAckTimeout() bool {
	if !d.tx.outstanding {
		return false
	}
	if time.Since(d.tx.sentAt) < ackTimeout {
		return false
	}
	d.tx.missingAcks++
	d.handleNak(nakTimeoutSubcode)
	return d.tx.missingAcks >= maxMissingAcks
}

var (
	errNotOpen      = handleError("tactilenet: handle is in a fatal state, re-open required")
	errBadCellCount = handleError("tactilenet: cell buffer length does not match geometry")
)

type handleError string

func (e handleError) Error() string { return string(e) }
