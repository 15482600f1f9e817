package storm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDetector() Detector {
	return Detector{
		SeedDBZ:       50,
		ExpandDBZ:     40,
		MinGates:      5,
		MaxIterations: 100,
		Alpha:         0.1,
	}
}

func TestGrowSinglePatch(t *testing.T) {
	t.Parallel()

	g := makeTestGrid(50, 50, 0)
	setPatch(g, 20, 25, 20, 25, 60)

	cells, err := testDetector().Grow(g)
	require.NoError(t, err)
	require.Len(t, cells, 1)

	cell := cells[0]
	assert.GreaterOrEqual(t, cell.NumGates, 25)
	assert.InDelta(t, 60.0, cell.MaxDBZ, 1e-9)
	// Uniform weights put the centroid at the patch center gate.
	assert.InDelta(t, g.LatAt(22, 22), cell.Centroid.Lat, 1e-9)
	assert.InDelta(t, g.LonAt(22, 22), cell.Centroid.Lon, 1e-9)
	assert.Equal(t, testScan, cell.ScanTime)
	require.NotNil(t, cell.BBox)
	assert.True(t, cell.Polygonal(), "25-gate patch should have a boundary polygon")
}

func TestGrowNoSeeds(t *testing.T) {
	t.Parallel()

	g := makeTestGrid(20, 20, 30) // everywhere below the seed threshold
	cells, err := testDetector().Grow(g)
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestGrowMalformedGrid(t *testing.T) {
	t.Parallel()

	g := makeTestGrid(20, 20, 0)
	g.Data = g.Data[:10] // shape violation is a hard error
	_, err := testDetector().Grow(g)
	assert.Error(t, err)
}

func TestGrowHysteresisBand(t *testing.T) {
	t.Parallel()

	// A 3x3 core at 60 dBZ surrounded by a 45 dBZ apron: the cell
	// grows into the apron even though no apron gate could seed.
	g := makeTestGrid(30, 30, 0)
	setPatch(g, 10, 19, 10, 19, 45)
	setPatch(g, 13, 16, 13, 16, 60)

	cells, err := testDetector().Grow(g)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 81, cells[0].NumGates, "cell should claim the full apron")
}

func TestGrowMutualExclusion(t *testing.T) {
	t.Parallel()

	// Two seeds with a shared 45 dBZ band between them. Every gate
	// must end up owned by at most one cell.
	g := makeTestGrid(20, 40, 0)
	setPatch(g, 5, 15, 5, 35, 45)
	setPatch(g, 8, 12, 8, 12, 60)
	setPatch(g, 8, 12, 28, 32, 60)

	cells, err := testDetector().Grow(g)
	require.NoError(t, err)
	require.Len(t, cells, 2)

	seen := make(map[int]int)
	for _, cell := range cells {
		for _, gate := range cell.Gates {
			if owner, ok := seen[gate]; ok {
				t.Fatalf("gate %d claimed by both cell %d and cell %d", gate, owner, cell.ID)
			}
			seen[gate] = cell.ID
		}
		assert.Equal(t, len(cell.Gates), cell.NumGates)
	}
	// The band is fully claimable, so between them the two cells own
	// the whole 45+ region.
	assert.Equal(t, 10*30, len(seen))
}

func TestGrowDeterminism(t *testing.T) {
	t.Parallel()

	g := makeTestGrid(40, 40, 0)
	setPatch(g, 5, 15, 5, 15, 45)
	setPatch(g, 8, 12, 8, 12, 55)
	setPatch(g, 20, 30, 20, 30, 45)
	setPatch(g, 24, 27, 24, 27, 52)

	first, err := testDetector().Grow(g)
	require.NoError(t, err)
	second, err := testDetector().Grow(g)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Gates, second[i].Gates)
		assert.Equal(t, first[i].Centroid, second[i].Centroid)
		assert.Equal(t, first[i].AlphaShape, second[i].AlphaShape)
	}
}

func TestGrowMinGatesFilter(t *testing.T) {
	t.Parallel()

	// A 2x2 patch (4 gates) below the 5-gate floor disappears.
	g := makeTestGrid(20, 20, 0)
	setPatch(g, 5, 7, 5, 7, 60)

	cells, err := testDetector().Grow(g)
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestGrowWeightedCentroid(t *testing.T) {
	t.Parallel()

	// Seed core on the left edge of a larger apron: the centroid
	// follows the reflectivity-weighted core, not the mask middle.
	g := makeTestGrid(30, 30, 0)
	setPatch(g, 10, 13, 10, 25, 45)
	setPatch(g, 10, 13, 10, 13, 60)

	cells, err := testDetector().Grow(g)
	require.NoError(t, err)
	require.Len(t, cells, 1)

	cell := cells[0]
	// Core columns are 10..12, so the weighted column is 11, well
	// left of the mask midpoint (~17).
	assert.InDelta(t, g.LonAt(11, 11), cell.Centroid.Lon, 1e-9)
}

func TestGrowNaNIsNoData(t *testing.T) {
	t.Parallel()

	g := makeTestGrid(20, 20, math.NaN())
	setPatch(g, 5, 10, 5, 10, 60)

	cells, err := testDetector().Grow(g)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 25, cells[0].NumGates)
}
