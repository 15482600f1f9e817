package storm

import (
	"sort"

	"github.com/ctessum/geom/index/rtree"

	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
)

// Terminator prunes cells that have been spatially absorbed by a
// larger survivor. Unlike the merger, which combines identities, the
// terminator discards them: a smaller cell mostly covered by a larger
// one signals dissipation rather than continuation.
type Terminator struct {
	CoverageThresholdPct float64
}

// NewTerminator builds a Terminator from tuning configuration.
func NewTerminator(cfg *config.TuningConfig) Terminator {
	return Terminator{CoverageThresholdPct: cfg.GetCoverageThresholdPct()}
}

// Terminate drops every cell whose own footprint area is covered
// above the threshold percentage by a strictly larger cell. Ties in
// gate count keep scan order. Input order of the survivors is
// preserved.
func (t Terminator) Terminate(cells []*CandidateCell) []*CandidateCell {
	if len(cells) <= 1 {
		return cells
	}

	// Largest first; equal sizes stay in scan order.
	order := make([]*CandidateCell, len(cells))
	copy(order, cells)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].NumGates > order[j].NumGates
	})

	tree := rtree.NewTree(25, 50)
	entryByCell := make(map[*CandidateCell]*cellEntry, len(order))
	for idx, c := range order {
		if poly := cellPolygon(c); poly != nil {
			e := &cellEntry{Polygonal: poly, index: idx}
			entryByCell[c] = e
			tree.Insert(e)
		}
	}

	removed := make(map[*CandidateCell]bool)
	for i, smaller := range order {
		e, ok := entryByCell[smaller]
		if !ok {
			continue
		}
		area := cellAreaKm2(smaller)
		if area <= 0 {
			continue
		}
		for _, hit := range tree.SearchIntersect(e.Bounds()) {
			larger := order[hit.(*cellEntry).index]
			if hit.(*cellEntry).index >= i || removed[larger] {
				continue
			}
			isect := e.Polygonal.Intersection(entryByCell[larger].Polygonal)
			if isect == nil {
				continue
			}
			pct := polygonalAreaKm2(isect) / area * 100
			if pct >= t.CoverageThresholdPct {
				removed[smaller] = true
				monitoring.Logf("terminate: cell %d is %.1f%% covered by cell %d, dropping", smaller.ID, pct, larger.ID)
				break
			}
		}
	}

	if len(removed) == 0 {
		return cells
	}
	out := make([]*CandidateCell, 0, len(cells)-len(removed))
	for _, c := range cells {
		if !removed[c] {
			out = append(out, c)
		}
	}
	monitoring.Logf("terminate: dropped %d of %d cells", len(removed), len(cells))
	return out
}
