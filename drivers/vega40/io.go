// -*- Mode: Go; indent-tabs-mode: t -*-
package vega40

import (
	"time"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/diff"
)

// txState implements spec.md §4.4's single-outstanding ACK/NAK write
// discipline and §3's "Write request state": at most one write is in
// flight; output_payload_limit bounds how much of one diff range a
// single frame carries; a truncated range's remainder is sent as soon
// as the current one resolves.
type txState struct {
	outstanding bool
	sentAt      time.Time

	// snapshot is the full host-intended buffer the in-flight (and any
	// queued) write is drawn from. It is never touched by Diff/Commit
	// until the corresponding frame is acknowledged.
	snapshot []byte
	// remaining is the [start,end] of snapshot not yet sent, valid
	// while outstanding || len(remaining)>0.
	remainingStart, remainingEnd int
	hasRemaining                 bool

	// lastChunkStart/End is the range of snapshot actually carried by
	// the most recently sent frame, committed to target on ACK.
	lastChunkStart, lastChunkEnd int

	// which engine/opcode the outstanding write belongs to, so handleAck
	// commits the right buffer.
	target *diff.Engine
	opcode byte

	// pendingWindow/pendingStatus hold a newer buffer the host supplied
	// for that buffer while the (handle-wide, single-outstanding) write
	// was busy with the other one, flushed once the current one
	// resolves. Kept separate per buffer so a window write in flight
	// never loses or misattributes a status write queued behind it.
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
		// spec.md's single-outstanding policy is per driver handle, not
		// per buffer: queue this buffer's latest desired contents and
		// flush it once the in-flight write (window or status) resolves.
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

	_, err := d.port.Write(frame)
	if err != nil {
		return braille.NewError(driverName, braille.KindIOError, err)
	}
	d.tx.lastChunkStart, d.tx.lastChunkEnd = start, chunkEnd
	d.tx.sentAt = time.Now()
	return nil
}

var writeCodec = codecEncoder{escape: 0x1B}

// codecEncoder mirrors framing.EscapeCodec's Encode without requiring
// the PayloadLen table the reader side needs, since the write path
// never decodes its own frames.
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
	// The dirty range was never committed, so it stays dirty in
	// d.tx.target's snapshot; clearing outstanding lets the next
	// WriteWindow call naturally re-diff and re-send it (spec.md §8
	// scenario S3: "re-queued and re-sent on the next request").
	d.tx.outstanding = false
	d.tx.hasRemaining = false
	// Any buffer queued behind this write is dropped rather than
	// resent automatically: the still-dirty range in the target
	// engine's snapshot means the next explicit WriteWindow/WriteStatus
	// call naturally re-diffs and re-sends it (spec.md §8 scenario S3).
	d.tx.hasPendingWindow = false
	d.tx.pendingWindow = nil
	d.tx.hasPendingStatus = false
	d.tx.pendingStatus = nil
}

// checkAckTimeout implements the implicit-NAK path of spec.md §4.4:
// "If no ACK arrives within 500 ms, treat as an implicit NAK; after 5
// consecutive missing ACKs, return RESTART."
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
	errNotOpen      = handleError("vega40: handle is in a fatal state, re-open required")
	errBadCellCount = handleError("vega40: cell buffer length does not match geometry")
)

type handleError string

func (e handleError) Error() string { return string(e) }
