// -*- Mode: Go; indent-tabs-mode: t -*-

// Package table builds the 256-entry output/input dot-translation
// tables of spec.md §4.3 from a per-device DotsTable[8] declaration,
// the way the teacher's swapBitDataBytes (example/device-modbus/modbus.go)
// builds a byte remapping once from a small declarative spec — here
// generalized from word-swapping to an arbitrary 8-bit permutation.
package table

// DotsTable gives, for each logical dot 1..8 (index 0..7), the
// physical bit position it occupies on the wire. A canonical device
// (dot i+1 at bit i) is DotsTable{0,1,2,3,4,5,6,7}.
type DotsTable [8]uint

// Translation is the immutable pair of 256-entry lookup tables built
// once at Open time (spec.md §9: "shared mutable tables ... immutable
// after construction; mark them so"). Out maps a canonical dot
// pattern to device order; In maps a device-order byte back to
// canonical, used by drivers whose protocol echoes key bitfields in
// device bit order.
type Translation struct {
	Out [256]byte
	In  [256]byte
}

// Build constructs both directions of the translation from dt. Every
// permutation of 0..7 yields a bijection, so Build never fails for a
// well-formed DotsTable; a DotsTable with a repeated bit position is
// a driver programming error caught by BuildChecked.
func Build(dt DotsTable) Translation {
	t, err := BuildChecked(dt)
	if err != nil {
		panic(err)
	}
	return t
}

// BuildChecked is Build with validation, used by drivers that load
// DotsTable from a runtime-probed model identifier (spec.md §4.4
// point 5: "a lookup table maps identifier byte → (cells, status, dot
// permutation)") rather than a compile-time constant.
func BuildChecked(dt DotsTable) (Translation, error) {
	var seen [8]bool
	for _, bit := range dt {
		if bit > 7 || seen[bit] {
			return Translation{}, errDotsTable
		}
		seen[bit] = true
	}

	var t Translation
	for pattern := 0; pattern < 256; pattern++ {
		var out byte
		for logical := 0; logical < 8; logical++ {
			if pattern&(1<<uint(logical)) != 0 {
				out |= 1 << dt[logical]
			}
		}
		t.Out[pattern] = out
		t.In[out] = byte(pattern)
	}
	return t, nil
}

var errDotsTable = dotsTableError("table: DotsTable must be a permutation of bit positions 0..7")

type dotsTableError string

func (e dotsTableError) Error() string { return string(e) }

// Canonical is the identity DotsTable, used by devices whose wire
// order already matches dot order 1..8.
var Canonical = DotsTable{0, 1, 2, 3, 4, 5, 6, 7}
