// Package assembler sorts a page's fused dimensions into reading
// order, assigns dense global sequential identifiers across pages,
// and labels each dimension with a drawing-grid zone.
package assembler

import (
	"sort"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
)

// BandHeight is the horizontal band height, in normalized units, used
// to sort dimensions into reading order.
const BandHeight = 100

// Grid names the column/row label sequences used to zone a page. The
// default is eight columns left-to-right, four rows top-to-bottom;
// an externally discovered grid overrides it per page.
type Grid struct {
	Columns []string // left-to-right
	Rows    []string // top-to-bottom
}

// DefaultGrid returns the spec's default column/row labels.
func DefaultGrid() Grid {
	return Grid{
		Columns: []string{"H", "G", "F", "E", "D", "C", "B", "A"},
		Rows:    []string{"4", "3", "2", "1"},
	}
}

// Band returns the horizontal band a y-coordinate falls into.
func Band(centerY int) int {
	return centerY / BandHeight
}

// sortReadingOrder orders dims by (band(center_y), center_x).
func sortReadingOrder(dims []model.Dimension) {
	sort.SliceStable(dims, func(i, j int) bool {
		bi, bj := Band(dims[i].BBox.CenterY()), Band(dims[j].BBox.CenterY())
		if bi != bj {
			return bi < bj
		}
		return dims[i].BBox.CenterX() < dims[j].BBox.CenterX()
	})
}

// Zone computes the grid-zone label for a bounding box's center under
// grid, e.g. "C4".
func Zone(bbox model.BBox, grid Grid) string {
	ncols := len(grid.Columns)
	nrows := len(grid.Rows)
	if ncols == 0 || nrows == 0 {
		return ""
	}
	colIdx := clamp(bbox.CenterX()*ncols/model.NormalizedCoord, 0, ncols-1)
	rowIdx := clamp(bbox.CenterY()*nrows/model.NormalizedCoord, 0, nrows-1)
	return grid.Columns[colIdx] + grid.Rows[rowIdx]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PageDimensions is one page's unassembled fused dimensions, in
// ascending page order.
type PageDimensions struct {
	Page  int
	Dims  []model.Dimension
	Grid  Grid // per-page grid, DefaultGrid() unless a collaborator discovered one
}

// Assemble sorts each page into reading order, assigns dense global
// IDs starting at 1 (page-major, then reading order within page), sets
// Page and Zone on every dimension, and returns the flattened list in
// global ID order.
func Assemble(pages []PageDimensions) []model.Dimension {
	all := make([]model.Dimension, 0)
	nextID := 1

	for _, p := range pages {
		dims := append([]model.Dimension(nil), p.Dims...)
		sortReadingOrder(dims)
		for i := range dims {
			dims[i].Page = p.Page
			zone := Zone(dims[i].BBox, p.Grid)
			dims[i].Zone = &zone
			dims[i].ID = nextID
			nextID++
		}
		all = append(all, dims...)
	}

	return all
}

// RecomputeZone implements the §6 collaborator operation: given a new
// bbox (e.g. after a UI drags a balloon), return its zone label under
// grid.
func RecomputeZone(newBBox model.BBox, grid Grid) string {
	return Zone(newBBox, grid)
}
