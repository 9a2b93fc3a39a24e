// -*- Mode: Go; indent-tabs-mode: t -*-

// Package keys implements the key interpretation pipeline of spec.md
// §4.5: raw decode into pressed-keys deltas, snapshot-on-press,
// emit-on-release chord mapping, routing keys, sensor strips, and the
// one-slot pending-command queue used when a single gesture expands
// to two host commands.
package keys

import "github.com/gobraille/brld/braille"

// State holds pressed_keys and active_keys (spec.md §3 "Key state")
// for one driver handle. It is not safe for concurrent use; the
// dispatch loop is single-threaded cooperative (spec.md §5).
type State struct {
	pressed     Chord
	active      Chord
	pressedFlag bool

	pending      *braille.Command
	pendingValid bool
}

// Chord is the set of physical keys held simultaneously (GLOSSARY).
// Function is a bitset of up to 64 function keys; Routing is one bit
// per cell; HSensor/LSensor/RSensor are optional sensor-strip
// bitmaps (spec.md §3).
type Chord struct {
	Function uint64
	Routing  []bool
	HSensor  []bool
	LSensor  []bool
	RSensor  []bool
}

// IsZero reports whether no key at all is held.
func (c Chord) IsZero() bool {
	if c.Function != 0 {
		return false
	}
	for _, set := range [][]bool{c.Routing, c.HSensor, c.LSensor, c.RSensor} {
		for _, b := range set {
			if b {
				return false
			}
		}
	}
	return true
}

func cloneBits(b []bool) []bool {
	if b == nil {
		return nil
	}
	out := make([]bool, len(b))
	copy(out, b)
	return out
}

func cloneChord(c Chord) Chord {
	return Chord{
		Function: c.Function,
		Routing:  cloneBits(c.Routing),
		HSensor:  cloneBits(c.HSensor),
		LSensor:  cloneBits(c.LSensor),
		RSensor:  cloneBits(c.RSensor),
	}
}

// NewState returns a State sized for the given cell and sensor
// counts. Pass 0 for a dimension the device lacks.
func NewState(routingCells, hsensor, lsensor, rsensor int) *State {
	return &State{
		pressed: Chord{
			Routing: make([]bool, routingCells),
			HSensor: make([]bool, hsensor),
			LSensor: make([]bool, lsensor),
			RSensor: make([]bool, rsensor),
		},
	}
}

// Resize grows or shrinks the routing/sensor bitmaps to match a new
// cell count (spec.md §4.4 payload adaptation): bits at or beyond the
// new count are cleared, per testable property 5.
func (s *State) Resize(routingCells, hsensor, lsensor, rsensor int) {
	s.pressed.Routing = resizeBits(s.pressed.Routing, routingCells)
	s.pressed.HSensor = resizeBits(s.pressed.HSensor, hsensor)
	s.pressed.LSensor = resizeBits(s.pressed.LSensor, lsensor)
	s.pressed.RSensor = resizeBits(s.pressed.RSensor, rsensor)
	s.active = Chord{}
	s.pressedFlag = false
	s.pending = nil
	s.pendingValid = false
}

func resizeBits(b []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, b)
	return out
}

// PressFunction sets or clears a function-key bit (raw decode, spec.md
// §4.5 step 1).
func (s *State) PressFunction(mask uint64, down bool) {
	if down {
		s.pressed.Function |= mask
	} else {
		s.pressed.Function &^= mask
	}
	s.afterRawDelta()
}

// PressRouting sets or clears routing key index (0-based).
func (s *State) PressRouting(index int, down bool) {
	if index < 0 || index >= len(s.pressed.Routing) {
		return
	}
	s.pressed.Routing[index] = down
	s.afterRawDelta()
}

// PressSensor sets or clears one bit of the named sensor strip.
type Strip int

const (
	StripHorizontal Strip = iota
	StripLeft
	StripRight
)

func (s *State) PressSensor(strip Strip, index int, down bool) {
	var target *[]bool
	switch strip {
	case StripHorizontal:
		target = &s.pressed.HSensor
	case StripLeft:
		target = &s.pressed.LSensor
	case StripRight:
		target = &s.pressed.RSensor
	default:
		return
	}
	if index < 0 || index >= len(*target) {
		return
	}
	(*target)[index] = down
	s.afterRawDelta()
}

// ReleaseAllForNoBitsPacket is called when a device whose protocol
// omits discrete release events instead sends a "keys now fully down"
// packet with no bits set, meaning every key has released (spec.md
// §4.5 step 1).
func (s *State) ReleaseAllForNoBitsPacket() {
	s.pressed = Chord{
		Routing: make([]bool, len(s.pressed.Routing)),
		HSensor: make([]bool, len(s.pressed.HSensor)),
		LSensor: make([]bool, len(s.pressed.LSensor)),
		RSensor: make([]bool, len(s.pressed.RSensor)),
	}
	s.afterRawDelta()
}

// afterRawDelta implements spec.md §4.5 steps 2-3: snapshot active_keys
// whenever a key not already in the snapshot goes down, and flag
// completion when everything has released. It does not itself emit a
// command — that is left to the driver's release handler, which knows
// whether this chord is a movement command (emit-on-press) or a
// regular one (emit-on-release).
func (s *State) afterRawDelta() {
	if !s.pressed.IsZero() {
		if !s.pressedFlag || hasNewBit(s.pressed, s.active) {
			s.active = cloneChord(s.pressed)
		}
		s.pressedFlag = true
		return
	}
	// all keys released
	if s.pressedFlag {
		s.pressedFlag = false
	}
}

// hasNewBit reports whether next holds a key that prev does not.
func hasNewBit(next, prev Chord) bool {
	if next.Function&^prev.Function != 0 {
		return true
	}
	pairs := [][2][]bool{{next.Routing, prev.Routing}, {next.HSensor, prev.HSensor}, {next.LSensor, prev.LSensor}, {next.RSensor, prev.RSensor}}
	for _, p := range pairs {
		for i, b := range p[0] {
			if b && (i >= len(p[1]) || !p[1][i]) {
				return true
			}
		}
	}
	return false
}

// Pressed reports whether any key is currently held.
func (s *State) Pressed() bool { return s.pressedFlag }

// Active returns the chord snapshot taken at the moment of the most
// recent new press.
func (s *State) Active() Chord { return s.active }

// ClearActive discards the active-keys snapshot, called once a chord
// has been mapped to a command (spec.md §4.5 step 3: "active_keys is
// cleared").
func (s *State) ClearActive() { s.active = Chord{} }

// SetPending stashes a second command to be returned on the next
// ReadCommand call (spec.md §3 "pending_command slot", §4.5 step 7).
// Only one command may be held at a time; a new SetPending overwrites
// any unclaimed one, matching the "at most one" wording.
func (s *State) SetPending(cmd braille.Command) {
	c := cmd
	s.pending = &c
	s.pendingValid = true
}

// TakePending returns and clears a pending command, if any.
func (s *State) TakePending() (braille.Command, bool) {
	if !s.pendingValid {
		return braille.None, false
	}
	s.pendingValid = false
	cmd := *s.pending
	s.pending = nil
	return cmd, true
}
