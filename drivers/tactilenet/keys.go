// -*- Mode: Go; indent-tabs-mode: t -*-
package tactilenet

import (
	"context"
	"time"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/keys"
)

var fnBlocks = map[uint64]braille.Command{
	0x1: braille.BlockCutBegin,
	0x2: braille.BlockGotoMark,
}

const functionOnlyBase braille.Command = 0x0100

func (d *Driver) handleKeyEvent(payload []byte) {
	if len(payload) < 1 {
		return
	}
	wasPressed := d.keyState.Pressed()

	fn := uint64(payload[0])
	for bit := 0; bit < 8; bit++ {
		d.keyState.PressFunction(1<<uint(bit), fn&(1<<uint(bit)) != 0)
	}

	routing := payload[1:]
	for i := 0; i < d.geometry.TextColumns; i++ {
		byteIdx, bitIdx := i/8, uint(i%8)
		down := byteIdx < len(routing) && routing[byteIdx]&(1<<bitIdx) != 0
		d.keyState.PressRouting(i, down)
	}

	if wasPressed && !d.keyState.Pressed() {
		d.resolveChordRelease()
	}
}

func (d *Driver) resolveChordRelease() {
	active := d.keyState.Active()
	d.keyState.ClearActive()

	cmd, ok := keys.RoutingCombo(active, fnBlocks)
	if ok {
		d.pendingCommand = &cmd
		return
	}
	if active.Function != 0 && allZero(active.Routing) {
		cmd := functionOnlyBase + braille.Command(active.Function)
		d.pendingCommand = &cmd
	}
}

func allZero(bits []bool) bool {
	for _, b := range bits {
		if b {
			return false
		}
	}
	return true
}

// ReadCommand implements braille.Handle.
func (d *Driver) ReadCommand(ctx context.Context, sctx braille.Context) (braille.Command, error) {
	if d.fatal {
		return braille.None, nil
	}

	if err := d.pumpIncoming(ctx); err != nil {
		return braille.None, err
	}

	if d.checkAckTimeout() {
		d.fatal = true
		return braille.Restart, nil
	}

	if time.Since(d.lastInput) >= keepaliveIdle {
		if d.pingsSent >= pingMaxNoQuery {
			d.fatal = true
			return braille.Restart, nil
		}
		_, _ = d.port.Write(writeCodec.Encode(opIdentifyRequest, nil))
		d.pingsSent++
		d.lastInput = time.Now()
	}

	if d.pendingCommand != nil {
		cmd := *d.pendingCommand
		d.pendingCommand = nil
		return cmd, nil
	}
	if cmd, ok := d.keyState.TakePending(); ok {
		return cmd, nil
	}
	return braille.None, nil
}
