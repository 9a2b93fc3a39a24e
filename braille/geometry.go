package braille

// Geometry describes a display's fixed shape. TextRows is always 1
// for every supported device (spec.md §3) but is kept explicit so the
// host never has to special-case it.
type Geometry struct {
	TextColumns   int
	TextRows      int
	StatusColumns int
	HelpPageIndex int // -1 when the driver has none
}

// Cells returns the total addressable cell count, text plus status,
// the quantity spec.md's cell-count resize invariant (testable
// property 5) is stated against.
func (g Geometry) Cells() int {
	return g.TextColumns*g.TextRows + g.StatusColumns
}
