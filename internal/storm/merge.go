package storm

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
	"github.com/ewsofficial/EdgeWARN/internal/units"
)

// Merger combines fragmented detections into coherent cells. Phase A
// absorbs undersized cells into nearby larger ones using a buffered
// bounding-box adjacency test; phase B resolves residual boundary
// overlap with true polygon intersection. The two phases deliberately
// use different proximity tests: the bbox buffer is a cheap adjacency
// filter, while intersection repairs overlaps the alpha-shape
// relaxation itself can introduce between disjoint masks.
type Merger struct {
	SizeRatioThreshold float64
	BufferKm           float64
	Alpha              float64
}

// NewMerger builds a Merger from tuning configuration.
func NewMerger(cfg *config.TuningConfig) Merger {
	return Merger{
		SizeRatioThreshold: cfg.GetSizeRatioThreshold(),
		BufferKm:           cfg.GetBufferKm(),
		Alpha:              cfg.GetAlpha(),
	}
}

// Merge runs both phases and returns the surviving cells. An empty
// input yields an empty output.
func (m Merger) Merge(cells []*CandidateCell) []*CandidateCell {
	if len(cells) == 0 {
		monitoring.Logf("merge: no cells to merge")
		return nil
	}
	cells = m.absorbSmall(cells)
	cells = m.resolveOverlaps(cells)
	return cells
}

// absorbSmall is phase A. Cells are split into large and small by
// comparing gate counts against the biggest cell; each small cell
// merges into the nearest large cell whose bbox lies within the
// latitude-corrected buffer, unless the small cell is already a
// sizable fraction of that target. Passes repeat until a fixpoint, so
// a small cell can reach an eligible large cell through intermediate
// growth of the target.
func (m Merger) absorbSmall(cells []*CandidateCell) []*CandidateCell {
	maxGates := 0
	for _, c := range cells {
		if c.NumGates > maxGates {
			maxGates = c.NumGates
		}
	}
	cutoff := float64(maxGates) * m.SizeRatioThreshold

	var large, small []*CandidateCell
	for _, c := range cells {
		if float64(c.NumGates) >= cutoff {
			large = append(large, c)
		} else {
			small = append(small, c)
		}
	}

	merged := true
	for merged && len(small) > 0 {
		merged = false
		var remaining []*CandidateCell

		for _, s := range small {
			latBuf, lonBuf := units.DegBuffer(s.Centroid.Lat, m.BufferKm)

			var adjacent []*CandidateCell
			for _, l := range large {
				if s.BBox != nil && l.BBox != nil && s.BBox.WithinBuffer(*l.BBox, latBuf, lonBuf) {
					adjacent = append(adjacent, l)
				}
			}
			if len(adjacent) == 0 {
				remaining = append(remaining, s)
				continue
			}

			closest := adjacent[0]
			best := centroidDistDeg(closest, s)
			for _, l := range adjacent[1:] {
				if d := centroidDistDeg(l, s); d < best {
					best = d
					closest = l
				}
			}
			// A small cell already near the target's size stands
			// alone for this pass.
			if float64(s.NumGates) >= float64(closest.NumGates)*m.SizeRatioThreshold {
				remaining = append(remaining, s)
				continue
			}

			m.mergeInto(closest, s)
			merged = true
		}
		small = remaining
	}

	return append(large, small...)
}

// resolveOverlaps is phase B. Any two cells whose footprints have
// positive intersection area merge, smaller into larger by gate
// count, and the scan restarts on the mutated list until no
// overlapping pair remains.
func (m Merger) resolveOverlaps(cells []*CandidateCell) []*CandidateCell {
	for {
		i, j := m.findOverlap(cells)
		if i < 0 {
			return cells
		}
		a, b := cells[i], cells[j]
		if a.NumGates >= b.NumGates {
			m.mergeInto(a, b)
			cells = append(cells[:j], cells[j+1:]...)
		} else {
			m.mergeInto(b, a)
			cells = append(cells[:i], cells[i+1:]...)
		}
		monitoring.Logf("merge: resolved overlap between cells %d and %d (%d remain)", a.ID, b.ID, len(cells))
	}
}

// findOverlap locates the first pair of cells with positive-area
// footprint intersection, using an rtree over cell bounds to prune
// the candidate pairs. Returns (-1, -1) when none overlap.
func (m Merger) findOverlap(cells []*CandidateCell) (int, int) {
	tree := rtree.NewTree(25, 50)
	entries := make([]*cellEntry, 0, len(cells))
	for idx, c := range cells {
		poly := cellPolygon(c)
		if poly == nil {
			continue
		}
		e := &cellEntry{Polygonal: poly, index: idx}
		entries = append(entries, e)
		tree.Insert(e)
	}

	for _, e := range entries {
		for _, hit := range tree.SearchIntersect(e.Bounds()) {
			other := hit.(*cellEntry)
			if other.index <= e.index {
				continue
			}
			isect := e.Polygonal.Intersection(other.Polygonal)
			if isect != nil && isect.Area() > 0 {
				return e.index, other.index
			}
		}
	}
	return -1, -1
}

// cellEntry adapts a cell footprint for rtree indexing.
type cellEntry struct {
	geom.Polygonal
	index int
}

// mergeInto folds src into dst: gate counts sum, the centroid becomes
// the gate-count-weighted average, boundary points are unioned and a
// fresh alpha shape is computed over the combined set, and the bbox
// becomes the union envelope. src is left untouched; the caller drops
// it.
func (m Merger) mergeInto(dst, src *CandidateCell) {
	total := dst.NumGates + src.NumGates
	dst.Centroid = LatLon{
		Lat: (dst.Centroid.Lat*float64(dst.NumGates) + src.Centroid.Lat*float64(src.NumGates)) / float64(total),
		Lon: (dst.Centroid.Lon*float64(dst.NumGates) + src.Centroid.Lon*float64(src.NumGates)) / float64(total),
	}
	dst.NumGates = total
	dst.Gates = append(dst.Gates, src.Gates...)
	if src.MaxDBZ > dst.MaxDBZ {
		dst.MaxDBZ = src.MaxDBZ
	}

	combined := make([][2]float64, 0, len(dst.AlphaShape)+len(src.AlphaShape))
	combined = append(combined, dst.AlphaShape...)
	combined = append(combined, src.AlphaShape...)
	if len(combined) >= 3 {
		boundary := BuildBoundary(combined, m.Alpha)
		if ring := boundary.Ring(); ring != nil {
			dst.AlphaShape = ring
		} else {
			dst.AlphaShape = combined
		}
	} else {
		dst.AlphaShape = combined
	}

	switch {
	case dst.BBox != nil && src.BBox != nil:
		u := dst.BBox.Union(*src.BBox)
		dst.BBox = &u
	case dst.BBox == nil:
		dst.BBox = src.BBox
	}
}

// centroidDistDeg is the flat degree-space distance between two cell
// centroids, used only for nearest-target ranking.
func centroidDistDeg(a, b *CandidateCell) float64 {
	return math.Hypot(a.Centroid.Lat-b.Centroid.Lat, a.Centroid.Lon-b.Centroid.Lon)
}
