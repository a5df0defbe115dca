package assembler

import (
	"testing"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dim(value string, xmin, ymin, xmax, ymax int) model.Dimension {
	return model.Dimension{Value: value, BBox: model.BBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}, Confidence: 0.9}
}

// TestAssembleDenseIDsInReadingOrder covers P1 and P2: IDs are dense
// from 1 and sorted by (page, band, center_x).
func TestAssembleDenseIDsInReadingOrder(t *testing.T) {
	page1 := PageDimensions{
		Page: 1,
		Grid: DefaultGrid(),
		Dims: []model.Dimension{
			dim("b", 700, 50, 720, 60),  // band 0, further right
			dim("a", 100, 50, 120, 60),  // band 0, left
			dim("c", 100, 250, 120, 260), // band 2
		},
	}
	out := Assemble([]PageDimensions{page1})
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Value, out[1].Value, out[2].Value})
}

func TestAssembleAcrossPagesIsPageMajor(t *testing.T) {
	page1 := PageDimensions{Page: 1, Grid: DefaultGrid(), Dims: []model.Dimension{dim("p1", 0, 0, 10, 10)}}
	page2 := PageDimensions{Page: 2, Grid: DefaultGrid(), Dims: []model.Dimension{dim("p2", 0, 0, 10, 10)}}
	out := Assemble([]PageDimensions{page1, page2})
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Page)
	assert.Equal(t, 2, out[1].Page)
	assert.Equal(t, 1, out[0].ID)
	assert.Equal(t, 2, out[1].ID)
}

// TestZoneBelongsToGrid covers P5.
func TestZoneBelongsToGrid(t *testing.T) {
	grid := DefaultGrid()
	bbox := model.BBox{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	zone := Zone(bbox, grid)
	require.Len(t, zone, 2)
	assert.Contains(t, grid.Columns, string(zone[0]))
	assert.Contains(t, grid.Rows, string(zone[1]))
}

// TestRecomputeZoneMatchesAssembledZone covers R2.
func TestRecomputeZoneMatchesAssembledZone(t *testing.T) {
	grid := DefaultGrid()
	d := dim("x", 300, 300, 320, 320)
	page := PageDimensions{Page: 1, Grid: grid, Dims: []model.Dimension{d}}
	out := Assemble([]PageDimensions{page})
	require.Len(t, out, 1)
	assert.Equal(t, *out[0].Zone, RecomputeZone(out[0].BBox, grid))
}
