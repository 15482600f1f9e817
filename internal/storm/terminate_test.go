package storm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTerminator() Terminator {
	return Terminator{CoverageThresholdPct: 67.0}
}

func TestTerminateCoveredCell(t *testing.T) {
	t.Parallel()

	// The small cell sits entirely inside the large one: 100%
	// coverage, far above the 67% threshold.
	large := testCell(1, 500, 35.00, 280.00, 0.10, 60)
	small := testCell(2, 40, 35.00, 280.00, 0.02, 50)

	out := testTerminator().Terminate([]*CandidateCell{large, small})
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].ID)
}

func TestTerminateKeepsDisjointCells(t *testing.T) {
	t.Parallel()

	a := testCell(1, 500, 35.00, 280.00, 0.05, 60)
	b := testCell(2, 40, 35.50, 280.50, 0.02, 50)

	out := testTerminator().Terminate([]*CandidateCell{a, b})
	assert.Len(t, out, 2)
}

func TestTerminateBelowThreshold(t *testing.T) {
	t.Parallel()

	// Half-overlapping squares: the smaller is 50% covered, below
	// the 67% cutoff, so both survive.
	a := testCell(1, 500, 35.00, 280.00, 0.05, 60)
	b := testCell(2, 40, 35.00, 280.05, 0.05, 50)

	out := testTerminator().Terminate([]*CandidateCell{a, b})
	assert.Len(t, out, 2)
}

func TestTerminateOnlyLargerRemoves(t *testing.T) {
	t.Parallel()

	// Identical footprints but equal gate counts: neither is strictly
	// larger in scan order terms than the earlier one, so only the
	// later cell can be dropped.
	a := testCell(1, 100, 35.00, 280.00, 0.05, 60)
	b := testCell(2, 100, 35.00, 280.00, 0.05, 58)

	out := testTerminator().Terminate([]*CandidateCell{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].ID, "scan order breaks the tie")
}

func TestTerminatePreservesInputOrder(t *testing.T) {
	t.Parallel()

	// The survivor list keeps scan order even though coverage checks
	// run largest-first.
	small := testCell(1, 40, 35.50, 280.50, 0.02, 50)
	large := testCell(2, 500, 35.00, 280.00, 0.05, 60)
	covered := testCell(3, 30, 35.00, 280.00, 0.01, 45)

	out := testTerminator().Terminate([]*CandidateCell{small, large, covered})
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].ID)
	assert.Equal(t, 2, out[1].ID)
}

func TestTerminateSingleCell(t *testing.T) {
	t.Parallel()

	cells := []*CandidateCell{testCell(1, 100, 35.00, 280.00, 0.05, 60)}
	out := testTerminator().Terminate(cells)
	assert.Equal(t, cells, out)
}

func TestTerminateNoGeometry(t *testing.T) {
	t.Parallel()

	// A cell with neither polygon nor bbox cannot be covered and is
	// kept.
	bare := &CandidateCell{ID: 1, NumGates: 10, Centroid: LatLon{Lat: 35, Lon: 280}}
	large := testCell(2, 500, 35.00, 280.00, 0.05, 60)

	out := testTerminator().Terminate([]*CandidateCell{bare, large})
	assert.Len(t, out, 2)
}
