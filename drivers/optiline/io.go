// -*- Mode: Go; indent-tabs-mode: t -*-
package optiline

import (
	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/diff"
)

const (
	classWriteWindow byte = 0x4
	classWriteStatus byte = 0x5
)

// WriteWindow implements braille.Handle. This family has no ACK
// either; a diffed range commits in the same call.
func (d *Driver) WriteWindow(cells braille.Cells) error {
	return d.write(d.textEngine, classWriteWindow, cells)
}

// WriteStatus implements braille.Handle.
func (d *Driver) WriteStatus(cells braille.Cells) error {
	return d.write(d.statusEngine, classWriteStatus, cells)
}

func (d *Driver) write(engine *diff.Engine, class byte, cells braille.Cells) error {
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
	frame := append([]byte{class << 4, byte(r.Start >> 8), byte(r.Start)}, translated...)

	if _, err := d.port.Write(frame); err != nil {
		return braille.NewError(driverName, braille.KindIOError, err)
	}

	engine.CommitRange(cells, r.Start, r.End)
	return nil
}

var (
	errNotOpen      = handleError("optiline: handle is in a fatal state, re-open required")
	errBadCellCount = handleError("optiline: cell buffer length does not match geometry")
)

type handleError string

func (e handleError) Error() string { return string(e) }
