// -*- Mode: Go; indent-tabs-mode: t -*-
package keys

import "github.com/gobraille/brld/braille"

// RoutingCombo resolves a chord consisting of exactly one routing key
// plus zero or more function keys into a compound command (spec.md
// §4.5 step 4: "cut-begin/append/line/rect, goto-mark, set-mark,
// set-left, describe-char, indent-jump"). fnBlocks maps a function-key
// bitmask to the block code it selects; a chord with no matching
// function mask and only the routing key falls back to plain ROUTE.
func RoutingCombo(c Chord, fnBlocks map[uint64]braille.Command) (cmd braille.Command, ok bool) {
	index, single := singleRoutingIndex(c.Routing)
	if !single {
		return 0, false
	}
	if block, found := fnBlocks[c.Function]; found {
		return block + braille.Command(index), true
	}
	if c.Function == 0 {
		return braille.CmdRoute(index), true
	}
	return 0, false
}

func singleRoutingIndex(routing []bool) (int, bool) {
	idx := -1
	for i, pressed := range routing {
		if pressed {
			if idx != -1 {
				return 0, false
			}
			idx = i
		}
	}
	if idx == -1 {
		return 0, false
	}
	return idx, true
}

// TwoRoutingKeyGesture resolves the classic "press routing key A, then
// routing key B while A is still conceptually held, release both"
// cut gesture into a begin/line pair (spec.md §4.5 step 7, §8
// scenario S4): the first routing key pressed becomes CUTBEGIN+first,
// queued as pending is CUTLINE+second once the second key is seen.
// Drivers call this from their release handler with the ordered
// sequence of routing indices observed while the chord was building.
func TwoRoutingKeyGesture(indices []int) (first, second braille.Command, ok bool) {
	if len(indices) != 2 {
		return 0, 0, false
	}
	return braille.BlockCutBegin + braille.Command(indices[0]),
		braille.BlockCutLine + braille.Command(indices[1]),
		true
}

// HorizontalSensorIndex maps a horizontal sensor-strip chord to the
// visible-window index it names (spec.md §4.5 step 5).
func HorizontalSensorIndex(hsensor []bool) (int, bool) {
	return singleRoutingIndex(hsensor)
}

// VerticalSensorCommand maps a left/right vertical sensor-strip chord
// to a goto-line command, applying a scaled-line transform when the
// device advertises scaled mode (spec.md §4.5 step 5).
func VerticalSensorCommand(strip []bool, totalLines int, scaled bool) (braille.Command, bool) {
	index, ok := singleRoutingIndex(strip)
	if !ok {
		return 0, false
	}
	line := index
	if scaled && len(strip) > 0 && totalLines > 0 {
		line = index * totalLines / len(strip)
	}
	return braille.BlockGotoLine + braille.Command(line), true
}
