package storm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
)

// Detector finds storm cells on one reflectivity grid by seeding
// connected regions above SeedDBZ and growing them outward into gates
// at or above ExpandDBZ. ExpandDBZ below SeedDBZ opens a hysteresis
// band: a cell's footprint can extend well past its strongest core as
// long as growth stays contiguous and unclaimed.
type Detector struct {
	SeedDBZ       float64
	ExpandDBZ     float64
	MinGates      int
	MaxIterations int
	Alpha         float64
}

// NewDetector builds a Detector from tuning configuration.
func NewDetector(cfg *config.TuningConfig) Detector {
	return Detector{
		SeedDBZ:       cfg.GetSeedDBZ(),
		ExpandDBZ:     cfg.GetExpandDBZ(),
		MinGates:      cfg.GetMinGates(),
		MaxIterations: cfg.GetMaxIterations(),
		Alpha:         cfg.GetAlpha(),
	}
}

// cellMask is one growing cell's working state. Gates are flat grid
// indices; frontier holds only the gates added in the previous sweep,
// since older gates have already had their neighborhoods examined.
type cellMask struct {
	id       int32
	gates    []int
	frontier []int
}

// Grow runs seed detection and region growth, returning one
// CandidateCell per surviving region. A grid with no gate at or above
// SeedDBZ yields an empty list, not an error; a malformed grid shape
// is a hard error.
//
// Mutual exclusion is enforced by an owner grid holding one cell id
// per gate (zero = unclaimed). Within a sweep, claims are resolved in
// ascending cell-id order, so the output is deterministic for a given
// grid and parameters.
func (d Detector) Grow(grid *ReflectivityGrid) ([]*CandidateCell, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	owner := make([]int32, grid.Rows*grid.Cols)
	cells := d.labelSeeds(grid, owner)
	if len(cells) == 0 {
		monitoring.Logf("detect: no reflectivity at or above seed threshold %.1f dBZ", d.SeedDBZ)
		return nil, nil
	}
	monitoring.Logf("detect: found %d seed cells above %.1f dBZ", len(cells), d.SeedDBZ)

	iterations := d.growCells(grid, owner, cells)
	monitoring.Logf("detect: expansion completed after %d iterations", iterations)

	var out []*CandidateCell
	for _, c := range cells {
		if len(c.gates) < d.MinGates {
			continue
		}
		out = append(out, d.buildCell(grid, c))
	}
	return out, nil
}

// labelSeeds flood-fills 8-connected components of the seed mask,
// claiming each component's gates in the owner grid. Components are
// numbered in row-major discovery order.
func (d Detector) labelSeeds(grid *ReflectivityGrid, owner []int32) []*cellMask {
	var cells []*cellMask
	var next int32 = 1
	for idx := range grid.Data {
		row, col := grid.RowCol(idx)
		if owner[idx] != 0 || grid.At(row, col) < d.SeedDBZ {
			continue
		}
		c := &cellMask{id: next}
		next++

		// BFS over the seed mask.
		owner[idx] = c.id
		queue := []int{idx}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			c.gates = append(c.gates, cur)
			r, cl := grid.RowCol(cur)
			for _, n := range neighbors8(grid, r, cl) {
				if owner[n] == 0 && grid.At(grid.RowCol(n)) >= d.SeedDBZ {
					owner[n] = c.id
					queue = append(queue, n)
				}
			}
		}
		c.frontier = c.gates
		cells = append(cells, c)
	}
	return cells
}

// growCells runs dilation sweeps until a full sweep claims nothing or
// MaxIterations is reached. Returns the number of sweeps run.
func (d Detector) growCells(grid *ReflectivityGrid, owner []int32, cells []*cellMask) int {
	for iter := 0; iter < d.MaxIterations; iter++ {
		changes := 0
		for _, c := range cells {
			var added []int
			for _, idx := range c.frontier {
				r, cl := grid.RowCol(idx)
				for _, n := range neighbors8(grid, r, cl) {
					if owner[n] != 0 {
						continue
					}
					if grid.At(grid.RowCol(n)) < d.ExpandDBZ {
						continue
					}
					owner[n] = c.id
					added = append(added, n)
				}
			}
			c.gates = append(c.gates, added...)
			c.frontier = added
			changes += len(added)
		}
		if changes == 0 {
			return iter
		}
	}
	return d.MaxIterations
}

// buildCell computes the per-cell summary: gate count, max
// reflectivity, centroid, and boundary geometry.
func (d Detector) buildCell(grid *ReflectivityGrid, c *cellMask) *CandidateCell {
	maxDBZ := math.Inf(-1)
	for _, idx := range c.gates {
		if v := grid.At(grid.RowCol(idx)); v > maxDBZ {
			maxDBZ = v
		}
	}

	centroid := d.centroid(grid, c.gates)

	points := make([][2]float64, len(c.gates))
	for i, idx := range c.gates {
		r, cl := grid.RowCol(idx)
		points[i] = [2]float64{grid.LonAt(r, cl), grid.LatAt(r, cl)}
	}
	boundary := BuildBoundary(points, d.Alpha)

	bbox := boundary.Envelope()
	if bbox == nil {
		bbox = envelopeOf(points)
	}

	return &CandidateCell{
		ID:         int(c.id),
		Gates:      c.gates,
		NumGates:   len(c.gates),
		MaxDBZ:     maxDBZ,
		Centroid:   centroid,
		AlphaShape: boundary.Ring(),
		BBox:       bbox,
		ScanTime:   grid.ScanTime,
	}
}

// centroid locates the cell center. When the cell still contains
// gates at or above the seed threshold, the center is the
// reflectivity-weighted mean position of that core; otherwise it is
// the unweighted mean of the whole mask. The mean index is rounded to
// the nearest gate and its coordinates are reported.
func (d Detector) centroid(grid *ReflectivityGrid, gates []int) LatLon {
	var rows, cols, weights []float64
	for _, idx := range gates {
		r, c := grid.RowCol(idx)
		if grid.At(r, c) >= d.SeedDBZ {
			rows = append(rows, float64(r))
			cols = append(cols, float64(c))
			weights = append(weights, grid.At(r, c))
		}
	}
	if len(rows) == 0 {
		for _, idx := range gates {
			r, c := grid.RowCol(idx)
			rows = append(rows, float64(r))
			cols = append(cols, float64(c))
		}
		weights = nil
	}

	meanRow := stat.Mean(rows, weights)
	meanCol := stat.Mean(cols, weights)
	r := clampInt(int(math.Round(meanRow)), 0, grid.Rows-1)
	c := clampInt(int(math.Round(meanCol)), 0, grid.Cols-1)
	return LatLon{Lat: grid.LatAt(r, c), Lon: grid.LonAt(r, c)}
}

// neighbors8 returns the in-bounds flat indices of the 8-neighborhood
// of (row, col).
func neighbors8(grid *ReflectivityGrid, row, col int) []int {
	out := make([]int, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r < 0 || r >= grid.Rows || c < 0 || c >= grid.Cols {
				continue
			}
			out = append(out, grid.Index(r, c))
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
