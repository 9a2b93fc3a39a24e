// -*- Mode: Go; indent-tabs-mode: t -*-
package vega40

import (
	"context"
	"time"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/keys"
)

// fnBlocks maps a function-key chord accompanying a single routing
// key to the compound command it selects (spec.md §4.5 step 4). The
// Vega 40 family binds its two lowest function keys to cut-begin and
// goto-mark; a routing key pressed alone falls back to plain ROUTE via
// keys.RoutingCombo, and a routing key with any other function-key
// combination produces no command.
var fnBlocks = map[uint64]braille.Command{
	0x1: braille.BlockCutBegin,
	0x2: braille.BlockGotoMark,
}

// functionOnlyBase keeps function-only chords (no routing key
// involved) out of the BlockRoute..BlockGotoLine range reserved for
// compound commands.
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
		if down {
			d.noteRoutingPress(i)
		}
	}

	if wasPressed && !d.keyState.Pressed() {
		d.resolveChordRelease()
	}
}

// noteRoutingPress records the order in which routing keys joined the
// current chord, used to detect the two-routing-key cut gesture
// (spec.md §8 scenario S4) which keys.RoutingCombo cannot express
// since it only resolves a single routing key.
func (d *Driver) noteRoutingPress(index int) {
	for _, seen := range d.routingOrder {
		if seen == index {
			return
		}
	}
	d.routingOrder = append(d.routingOrder, index)
}

func (d *Driver) resolveChordRelease() {
	active := d.keyState.Active()
	order := d.routingOrder
	d.routingOrder = nil
	d.keyState.ClearActive()

	if len(order) == 2 {
		first, second, ok := keys.TwoRoutingKeyGesture(order)
		if ok {
			d.keyState.SetPending(second)
			d.pendingCommand = &first
			return
		}
	}

	if active.Function != 0 && allZero(active.Routing) {
		cmd := functionOnlyBase + braille.Command(active.Function)
		d.pendingCommand = &cmd
		return
	}

	cmd, ok := keys.RoutingCombo(active, fnBlocks)
	if ok {
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

// ReadCommand implements braille.Handle. It pumps whatever bytes are
// currently available, resolves any completed chord or ACK/NAK, and
// returns the next command without blocking beyond the short internal
// timeout spec.md §5 bounds ReadCommand to.
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
