// -*- Mode: Go; indent-tabs-mode: t -*-
package lumitech

import (
	"context"
	"time"

	"github.com/gobraille/brld/braille"
	"github.com/gobraille/brld/internal/keys"
)

// movementBlocks names the function-key bits spec.md §4.5 step 3
// singles out as "repeating movement commands": pan left/right and
// line up/down. Unlike every other chord, these emit on the press
// transition rather than on release, carrying braille.FlagRepeat so
// the host knows it may autorepeat while the key stays down.
var movementBlocks = map[uint64]braille.Command{
	0x01: functionOnlyBase + 1, // pan left
	0x02: functionOnlyBase + 2, // pan right
	0x04: functionOnlyBase + 3, // line up
	0x08: functionOnlyBase + 4, // line down
}

// fnBlocks maps a non-movement function-key chord (no routing key
// involved) to its compound command, resolved on release like every
// other chord in this family.
var fnBlocks = map[uint64]braille.Command{
	0x10: braille.BlockSetMark,
	0x20: braille.BlockDescribeChar,
}

const functionOnlyBase braille.Command = 0x0100

func (d *Driver) handleKeyEvent(payload []byte) {
	if len(payload) < 1 {
		return
	}
	prevFn := d.function
	fn := uint64(payload[0])
	wasPressed := d.keyState.Pressed()

	for bit := 0; bit < 8; bit++ {
		d.keyState.PressFunction(1<<uint(bit), fn&(1<<uint(bit)) != 0)
	}
	d.function = fn

	routing := payload[1:]
	for i := 0; i < d.geometry.TextColumns; i++ {
		byteIdx, bitIdx := i/8, uint(i%8)
		down := byteIdx < len(routing) && routing[byteIdx]&(1<<bitIdx) != 0
		d.keyState.PressRouting(i, down)
	}

	noRouting := true
	for _, b := range routing {
		if b != 0 {
			noRouting = false
		}
	}

	// A movement key pressed alone, newly down and with no routing key
	// held, emits immediately rather than waiting for release.
	if block, isMovement := movementBlocks[fn]; isMovement && fn != prevFn && noRouting {
		cmd := block | braille.FlagRepeat
		d.pendingCommand = &cmd
		return
	}

	if wasPressed && !d.keyState.Pressed() {
		d.resolveChordRelease()
	}
}

func (d *Driver) resolveChordRelease() {
	active := d.keyState.Active()
	d.keyState.ClearActive()

	if _, isMovement := movementBlocks[active.Function]; isMovement {
		// Already emitted on press; the release transition is a no-op.
		return
	}

	cmd, ok := keys.RoutingCombo(active, fnBlocks)
	if ok {
		d.pendingCommand = &cmd
		return
	}
	if active.Function != 0 && allZero(active.Routing) {
		cmd, found := fnBlocks[active.Function]
		if !found {
			cmd = functionOnlyBase + braille.Command(active.Function)
		}
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

	if time.Since(d.lastInput) >= keepaliveIdle {
		if d.pingsSent >= pingMaxNoQuery {
			d.fatal = true
			return braille.Restart, nil
		}
		_, _ = d.port.Write(codec.Encode([]byte{opIdentifyRequest}))
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
