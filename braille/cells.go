package braille

// Cells is a sequence of canonical 8-bit dot patterns: bit i
// corresponds to dot i+1 (GLOSSARY). The host always supplies and
// receives cells in this canonical order; device-order translation is
// an internal concern (spec.md §4.3, §9: "shared mutable tables ...
// immutable after construction").
type Cells []byte

// Clone returns an independent copy, used whenever a buffer crosses
// from host-owned to driver-owned storage so later host mutation
// can't retroactively change what was already transmitted.
func (c Cells) Clone() Cells {
	out := make(Cells, len(c))
	copy(out, c)
	return out
}

// Equal reports whether two cell sequences hold identical dot
// patterns.
func Equal(a, b Cells) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
