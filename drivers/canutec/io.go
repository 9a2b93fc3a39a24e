// -*- Mode: Go; indent-tabs-mode: t -*-
package canutec

import (
	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/diff"
)

// WriteWindow implements braille.Handle. None of the three Canutec
// sub-protocols ACK a write, so a diffed range commits in the same
// call, same as lumitech.
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
	payload := append([]byte{byte(r.Start >> 8), byte(r.Start)}, translated...)
	frame := d.proto.encode(opcode, payload)

	if _, err := d.port.Write(frame); err != nil {
		return braille.NewError(driverName, braille.KindIOError, err)
	}

	engine.CommitRange(cells, r.Start, r.End)
	return nil
}

var (
	errNotOpen      = handleError("canutec: handle is in a fatal state, re-open required")
	errBadCellCount = handleError("canutec: cell buffer length does not match geometry")
)

type handleError string

func (e handleError) Error() string { return string(e) }
