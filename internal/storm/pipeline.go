package storm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
)

// Pipeline runs one scan through detection, merging, termination,
// matching, and history application. It owns no I/O: the grid and
// tracked set arrive already materialized, and callers decide when to
// persist. Invocations against the same TrackedSet must not run
// concurrently.
type Pipeline struct {
	Detector   Detector
	Merger     Merger
	Terminator Terminator
	Matcher    Matcher
}

// NewPipeline assembles a pipeline from tuning configuration.
func NewPipeline(cfg *config.TuningConfig) *Pipeline {
	return &Pipeline{
		Detector:   NewDetector(cfg),
		Merger:     NewMerger(cfg),
		Terminator: NewTerminator(cfg),
		Matcher:    NewMatcher(cfg),
	}
}

// ScanResult summarizes one pipeline run.
type ScanResult struct {
	RunID      string
	ScanTime   string
	Detected   int
	Merged     int
	Terminated int
	Matching   MatchResult
	Tracks     int
}

// RunScan processes one reflectivity grid against the tracked set.
// The set is mutated in place: matched tracks absorb their new
// detections, unmatched detections become new tracks, and tracks
// highly covered by a larger survivor are pruned. A scan with no
// detections leaves the set untouched and is not an error.
func (p *Pipeline) RunScan(grid *ReflectivityGrid, tracked *TrackedSet) (*ScanResult, error) {
	runID := uuid.NewString()
	monitoring.Logf("pipeline %s: scan %s starting against %d tracks", runID, grid.ScanTime, tracked.Len())

	detected, err := p.Detector.Grow(grid)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", runID, err)
	}
	result := &ScanResult{RunID: runID, ScanTime: grid.ScanTime, Detected: len(detected)}
	if len(detected) == 0 {
		result.Tracks = tracked.Len()
		monitoring.Logf("pipeline %s: no detections, tracked set unchanged", runID)
		return result, nil
	}

	merged := p.Merger.Merge(detected)
	result.Merged = len(merged)

	// Prune the previous generation before matching so dissipated
	// cells are not offered to the solver.
	oldCells := p.Terminator.Terminate(tracked.AsCandidates())
	result.Terminated = tracked.Len() - len(oldCells)

	result.Matching = p.Matcher.Match(oldCells, merged)
	monitoring.Logf("pipeline %s: %d matches (%s), %d unmatched old, %d unmatched new",
		runID, len(result.Matching.Matches), result.Matching.Quality,
		len(result.Matching.UnmatchedOld), len(result.Matching.UnmatchedNew))

	tracked.Apply(oldCells, merged, result.Matching.Matches)
	result.Tracks = tracked.Len()
	monitoring.Logf("pipeline %s: scan complete, %d tracks", runID, result.Tracks)
	return result, nil
}
