// -*- Mode: Go; indent-tabs-mode: t -*-
package lumitech

import (
	"time"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/diff"
	"github.com/gobraille/brld/internal/transport"
)

// WriteWindow implements braille.Handle. Lumitech displays have no
// ACK/NAK (spec.md §4.4: "Drivers without ACK simply rate-limit by
// the write_delay mechanism"), so a diffed range is transmitted and
// committed in the same call; there is no outstanding-write state to
// track.
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

	r := engine.Diff(cells)
	if r.Empty {
		return nil
	}

	translated := make([]byte, r.End-r.Start+1)
	for i := range translated {
		translated[i] = d.dots.Out[cells[r.Start+i]]
	}
	payload := append([]byte{opcode, byte(r.Start >> 8), byte(r.Start)}, translated...)
	frame := codec.Encode(payload)

	d.paceWrite(len(frame))
	if _, err := d.port.Write(frame); err != nil {
		return braille.NewError(driverName, braille.KindIOError, err)
	}

	engine.CommitRange(cells, r.Start, r.End)
	return nil
}

// paceWrite blocks, if needed, until the write_delay credit for the
// previous frame has elapsed (spec.md §4.2's WriteDelay, since this
// family has no hardware flow control and no ACK to pace against).
func (d *Driver) paceWrite(frameLen int) {
	wait := time.Until(d.nextWriteAt)
	if wait > 0 {
		time.Sleep(wait)
	}
	d.nextWriteAt = time.Now().Add(transport.WriteDelay(frameLen, baudRate, bitsPerChar))
}

var (
	errNotOpen      = handleError("lumitech: handle is in a fatal state, re-open required")
	errBadCellCount = handleError("lumitech: cell buffer length does not match geometry")
)

type handleError string

func (e handleError) Error() string { return string(e) }
