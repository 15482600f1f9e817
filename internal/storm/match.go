package storm

import (
	"fmt"
	"math"
	"sort"

	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
	"github.com/ewsofficial/EdgeWARN/internal/units"
)

// PenaltyCost is the feasibility cutoff for the cost matrix. Any pair
// costing this much or more is never accepted as a match, even if the
// solver was forced into a complete assignment.
const PenaltyCost = 1000.0

// MatchWeights balances the three similarity terms of the pair cost.
type MatchWeights struct {
	Distance     float64
	NumGates     float64
	Reflectivity float64
}

// Assigner solves a minimum-cost assignment, returning the column
// assigned to each row or -1. It is injectable so that solver failure
// and the greedy fallback path can be exercised directly.
type Assigner func(cost [][]float64) ([]int, error)

// Matcher links cells of the previous scan to new detections by
// solving a gated minimum-cost assignment over centroid distance,
// gate-count difference, and peak-reflectivity difference.
type Matcher struct {
	Weights   MatchWeights
	MaxGateKm float64
	Assign    Assigner
}

// NewMatcher builds a Matcher from tuning configuration with the
// exact solver installed.
func NewMatcher(cfg *config.TuningConfig) Matcher {
	return Matcher{
		Weights: MatchWeights{
			Distance:     cfg.GetWeightDistance(),
			NumGates:     cfg.GetWeightNumGates(),
			Reflectivity: cfg.GetWeightReflectivity(),
		},
		MaxGateKm: cfg.GetMaxGateKm(),
		Assign:    ExactAssigner,
	}
}

// ExactAssigner runs the Jonker-Volgenant solver, converting a panic
// into an error so the caller can fall back to greedy matching.
func ExactAssigner(cost [][]float64) (assignment []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assignment solver: %v", r)
		}
	}()
	return hungarianAssign(cost), nil
}

// Match builds the gated cost matrix and solves the assignment.
// Either side being empty yields an infeasible (empty) result, not an
// error. Accepted pairs always cost less than PenaltyCost and respect
// the motion gate; leftover indices on both sides are reported for
// termination and new-track decisions.
func (m Matcher) Match(oldCells, newCells []*CandidateCell) MatchResult {
	nOld, nNew := len(oldCells), len(newCells)
	if nOld == 0 || nNew == 0 {
		monitoring.Logf("match: nothing to match (%d old, %d new)", nOld, nNew)
		return infeasibleResult(nOld, nNew)
	}

	cost, feasible := m.costMatrix(oldCells, newCells)
	if !feasible {
		monitoring.Logf("match: no candidate pair below penalty cost (%d old, %d new)", nOld, nNew)
		return infeasibleResult(nOld, nNew)
	}

	assign := m.Assign
	if assign == nil {
		assign = ExactAssigner
	}

	quality := MatchOptimal
	assignment, err := assign(cost)
	if err != nil {
		// Solver instability is worth surfacing even though the
		// fallback recovers.
		monitoring.Logf("match: exact solver failed (%v), falling back to greedy matching", err)
		quality = MatchFallback
		assignment = greedyAssign(cost)
	}

	var matches []Match
	for i, j := range assignment {
		if j < 0 {
			continue
		}
		if c := cost[i][j]; c < PenaltyCost {
			matches = append(matches, Match{OldIndex: i, NewIndex: j, Cost: c})
		}
	}

	result := MatchResult{Quality: quality, Matches: matches}
	usedOld := make([]bool, nOld)
	usedNew := make([]bool, nNew)
	for _, mt := range matches {
		usedOld[mt.OldIndex] = true
		usedNew[mt.NewIndex] = true
	}
	for i := 0; i < nOld; i++ {
		if !usedOld[i] {
			result.UnmatchedOld = append(result.UnmatchedOld, i)
		}
	}
	for j := 0; j < nNew; j++ {
		if !usedNew[j] {
			result.UnmatchedNew = append(result.UnmatchedNew, j)
		}
	}
	return result
}

// costMatrix fills the n_old×n_new matrix. Pairs whose east-west or
// north-south displacement exceeds MaxGateKm are forbidden; the
// second return value reports whether any pair stayed below
// PenaltyCost.
func (m Matcher) costMatrix(oldCells, newCells []*CandidateCell) ([][]float64, bool) {
	maxGates, maxDBZ := populationMaxima(oldCells, newCells)

	feasible := false
	cost := make([][]float64, len(oldCells))
	for i, c0 := range oldCells {
		cost[i] = make([]float64, len(newCells))
		for j, c1 := range newCells {
			dxKm, dyKm := units.DeltaKm(c0.Centroid.Lat, c0.Centroid.Lon, c1.Centroid.Lat, c1.Centroid.Lon)
			if math.Abs(dxKm) > m.MaxGateKm || math.Abs(dyKm) > m.MaxGateKm {
				cost[i][j] = assignInf
				continue
			}
			cost[i][j] = m.pairCost(c0, c1, maxGates, maxDBZ)
			if cost[i][j] < PenaltyCost {
				feasible = true
			}
		}
	}
	return cost, feasible
}

// pairCost combines the normalized similarity terms. The distance
// term saturates at ten degrees; the other two normalize against the
// population maxima with a floor of one to avoid division by zero.
func (m Matcher) pairCost(c0, c1 *CandidateCell, maxGates, maxDBZ float64) float64 {
	dist := math.Hypot(c0.Centroid.Lat-c1.Centroid.Lat, c0.Centroid.Lon-c1.Centroid.Lon)
	normDist := math.Min(dist/10.0, 1.0)
	normGates := math.Abs(float64(c0.NumGates)-float64(c1.NumGates)) / maxGates
	normDBZ := math.Abs(c0.MaxDBZ-c1.MaxDBZ) / maxDBZ
	return m.Weights.Distance*normDist + m.Weights.NumGates*normGates + m.Weights.Reflectivity*normDBZ
}

// populationMaxima scans both cell sets for the largest gate count
// and reflectivity, floored at one.
func populationMaxima(oldCells, newCells []*CandidateCell) (maxGates, maxDBZ float64) {
	maxGates, maxDBZ = 1.0, 1.0
	for _, c := range oldCells {
		maxGates = math.Max(maxGates, float64(c.NumGates))
		maxDBZ = math.Max(maxDBZ, c.MaxDBZ)
	}
	for _, c := range newCells {
		maxGates = math.Max(maxGates, float64(c.NumGates))
		maxDBZ = math.Max(maxDBZ, c.MaxDBZ)
	}
	return maxGates, maxDBZ
}

// greedyAssign is the robustness fallback: every feasible pair sorted
// ascending by cost, accepted when both its row and column are still
// free. Trades optimality for never failing.
func greedyAssign(cost [][]float64) []int {
	type pair struct {
		i, j int
		c    float64
	}
	var pairs []pair
	for i := range cost {
		for j, c := range cost[i] {
			if c < PenaltyCost {
				pairs = append(pairs, pair{i, j, c})
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].c < pairs[b].c })

	assignment := make([]int, len(cost))
	for i := range assignment {
		assignment[i] = -1
	}
	usedCol := make(map[int]bool)
	for _, p := range pairs {
		if assignment[p.i] >= 0 || usedCol[p.j] {
			continue
		}
		assignment[p.i] = p.j
		usedCol[p.j] = true
	}
	return assignment
}

func infeasibleResult(nOld, nNew int) MatchResult {
	r := MatchResult{Quality: MatchInfeasible}
	for i := 0; i < nOld; i++ {
		r.UnmatchedOld = append(r.UnmatchedOld, i)
	}
	for j := 0; j < nNew; j++ {
		r.UnmatchedNew = append(r.UnmatchedNew, j)
	}
	return r
}
