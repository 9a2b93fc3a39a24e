package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobraille/brld/braille"
)

func TestSnapshotOnNewPressAndEmitOnRelease(t *testing.T) {
	s := NewState(40, 0, 0, 0)

	s.PressRouting(5, true)
	require.True(t, s.Pressed())
	active := s.Active()
	assert.True(t, active.Routing[5])

	// a second key joining an already-building chord keeps the chord
	// going and is added to the snapshot (spec.md §4.5 step 2).
	s.PressFunction(0x1, true)
	assert.True(t, s.Pressed())

	s.PressRouting(5, false)
	s.PressFunction(0x1, false)
	assert.False(t, s.Pressed(), "chord must clear once every key releases")
}

func TestReleaseEdgeEmitsExactlyOnce(t *testing.T) {
	s := NewState(40, 0, 0, 0)
	releases := 0

	press := func() {
		s.PressRouting(10, true)
		if s.Pressed() {
			// no emission while keys are still down
		}
	}
	release := func() {
		wasPressed := s.Pressed()
		s.PressRouting(10, false)
		if wasPressed && !s.Pressed() {
			releases++
			s.ClearActive()
		}
	}

	press()
	release()
	assert.Equal(t, 1, releases)

	press()
	release()
	assert.Equal(t, 2, releases, "each press/release cycle emits exactly once")
}

func TestRoutingComboPlainRoute(t *testing.T) {
	c := Chord{Routing: []bool{false, false, true, false}}
	cmd, ok := RoutingCombo(c, nil)
	require.True(t, ok)
	assert.Equal(t, braille.CmdRoute(2), cmd)
}

func TestRoutingComboCompound(t *testing.T) {
	c := Chord{Function: 0x2, Routing: []bool{false, true, false}}
	fnBlocks := map[uint64]braille.Command{0x2: braille.BlockCutBegin}
	cmd, ok := RoutingCombo(c, fnBlocks)
	require.True(t, ok)
	assert.Equal(t, braille.BlockCutBegin+1, cmd)
}

func TestRoutingComboRejectsMultipleRoutingKeys(t *testing.T) {
	c := Chord{Routing: []bool{true, true}}
	_, ok := RoutingCombo(c, nil)
	assert.False(t, ok)
}

func TestTwoRoutingKeyGesture(t *testing.T) {
	first, second, ok := TwoRoutingKeyGesture([]int{5, 10})
	require.True(t, ok)
	assert.Equal(t, braille.BlockCutBegin+5, first)
	assert.Equal(t, braille.BlockCutLine+10, second)
}

func TestPendingQueueHoldsAtMostOne(t *testing.T) {
	s := NewState(0, 0, 0, 0)
	_, ok := s.TakePending()
	assert.False(t, ok)

	s.SetPending(braille.BlockCutLine + 3)
	s.SetPending(braille.BlockCutLine + 7) // overwrites, never two at once

	cmd, ok := s.TakePending()
	require.True(t, ok)
	assert.Equal(t, braille.BlockCutLine+7, cmd)

	_, ok = s.TakePending()
	assert.False(t, ok, "pending slot must be empty after being taken")
}

func TestResizeClearsBitsBeyondNewCount(t *testing.T) {
	s := NewState(40, 0, 0, 0)
	s.PressRouting(39, true)
	s.Resize(80, 0, 0, 0)

	assert.Len(t, s.pressed.Routing, 80)
	assert.True(t, s.pressed.Routing[39], "existing indices below the old count survive a grow")
	for i := 40; i < 80; i++ {
		assert.False(t, s.pressed.Routing[i])
	}
}

func TestVerticalSensorScaledLine(t *testing.T) {
	strip := make([]bool, 10)
	strip[5] = true
	cmd, ok := VerticalSensorCommand(strip, 100, true)
	require.True(t, ok)
	assert.Equal(t, braille.BlockGotoLine+50, cmd)
}
