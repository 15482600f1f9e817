package storm

import (
	"fmt"
	"math"
)

// noDataDBZ replaces NaN gates so threshold comparisons stay simple.
const noDataDBZ = -9999.0

// ReflectivityGrid is one scan's worth of gridded reflectivity plus
// its coordinate arrays. Values are dBZ; NaN marks missing data.
// Coordinate arrays may be 1-D axes (len Rows / len Cols) or full 2-D
// fields flattened row-major (len Rows*Cols). The grid is treated as
// immutable for the duration of one detection pass.
type ReflectivityGrid struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"` // row-major, len Rows*Cols

	Lat []float64 `json:"lat"`
	Lon []float64 `json:"lon"` // 0-360 convention

	ScanTime string `json:"scan_time"` // ISO-8601-like
}

// Validate checks the shape contract. A violation is an upstream bug
// and propagates as a hard error rather than an empty result.
func (g *ReflectivityGrid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("grid: invalid shape %dx%d", g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("grid: data length %d does not match shape %dx%d", len(g.Data), g.Rows, g.Cols)
	}
	if len(g.Lat) != g.Rows && len(g.Lat) != g.Rows*g.Cols {
		return fmt.Errorf("grid: latitude array length %d matches neither rows %d nor full grid", len(g.Lat), g.Rows)
	}
	if len(g.Lon) != g.Cols && len(g.Lon) != g.Rows*g.Cols {
		return fmt.Errorf("grid: longitude array length %d matches neither cols %d nor full grid", len(g.Lon), g.Cols)
	}
	if g.ScanTime == "" {
		return fmt.Errorf("grid: missing scan timestamp")
	}
	return nil
}

// At returns the reflectivity at (row, col) with NaN mapped to the
// no-data sentinel.
func (g *ReflectivityGrid) At(row, col int) float64 {
	v := g.Data[row*g.Cols+col]
	if math.IsNaN(v) {
		return noDataDBZ
	}
	return v
}

// LatAt returns the latitude of gate (row, col).
func (g *ReflectivityGrid) LatAt(row, col int) float64 {
	if len(g.Lat) == g.Rows {
		return g.Lat[row]
	}
	return g.Lat[row*g.Cols+col]
}

// LonAt returns the longitude of gate (row, col).
func (g *ReflectivityGrid) LonAt(row, col int) float64 {
	if len(g.Lon) == g.Cols {
		return g.Lon[col]
	}
	return g.Lon[row*g.Cols+col]
}

// Index converts (row, col) to the flat gate index.
func (g *ReflectivityGrid) Index(row, col int) int { return row*g.Cols + col }

// RowCol converts a flat gate index back to (row, col).
func (g *ReflectivityGrid) RowCol(idx int) (int, int) { return idx / g.Cols, idx % g.Cols }

// MaxDBZ returns the largest reflectivity on the grid, ignoring
// no-data gates. Returns the sentinel when the grid is all missing.
func (g *ReflectivityGrid) MaxDBZ() float64 {
	best := noDataDBZ
	for _, v := range g.Data {
		if !math.IsNaN(v) && v > best {
			best = v
		}
	}
	return best
}
