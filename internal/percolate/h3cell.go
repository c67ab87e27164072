package percolate

import (
	"github.com/uber/h3-go/v4"
)

// parseH3Cell parses a hex-encoded H3 cell index. Unparseable or invalid
// strings are reported via ok=false so callers can ignore that value rather
// than treat it as an error, per the no-partial-results rule in §4.7.
func parseH3Cell(s string) (h3.Cell, bool) {
	cell, err := h3.CellFromString(s)
	if err != nil || !cell.IsValid() {
		return 0, false
	}
	return cell, true
}

// h3IsDescendant reports whether cell is ancestor itself, or a descendant of
// ancestor at any finer resolution. H3's hierarchy gives every cell exactly
// one parent per coarser resolution, so a single Parent() call at ancestor's
// resolution is sufficient.
func h3IsDescendant(cell, ancestor h3.Cell) bool {
	if cell == ancestor {
		return true
	}
	if cell.Resolution() <= ancestor.Resolution() {
		return false
	}
	parent, err := cell.Parent(ancestor.Resolution())
	if err != nil {
		return false
	}
	return parent == ancestor
}

// h3Ancestors returns cell and every ancestor of cell up to and including
// resolution 0, used by the H3 pre-heater to expand a document value into
// virtual keys.
func h3Ancestors(cell h3.Cell) []h3.Cell {
	out := make([]h3.Cell, 0, cell.Resolution()+1)
	out = append(out, cell)
	for res := cell.Resolution() - 1; res >= 0; res-- {
		parent, err := cell.Parent(res)
		if err != nil {
			break
		}
		out = append(out, parent)
	}
	return out
}
