package storm

import (
	"sort"

	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
)

// TrackedSet is the persistent collection of storm tracks. It is
// single-writer: one pipeline invocation mutates it at a time, and
// callers running concurrent invocations against the same set must
// serialize them.
type TrackedSet struct {
	Cells []*TrackedCell

	byID map[int]*TrackedCell
}

// NewTrackedSet wraps an existing cell list (typically loaded from the
// state file) into a set with an id index.
func NewTrackedSet(cells []*TrackedCell) *TrackedSet {
	s := &TrackedSet{Cells: cells, byID: make(map[int]*TrackedCell, len(cells))}
	for _, c := range cells {
		s.byID[c.ID] = c
	}
	return s
}

// Get returns the tracked cell with the given id, or nil.
func (s *TrackedSet) Get(id int) *TrackedCell { return s.byID[id] }

// Len returns the number of tracks.
func (s *TrackedSet) Len() int { return len(s.Cells) }

// add registers a cell in both the list and the id index.
func (s *TrackedSet) add(c *TrackedCell) {
	s.Cells = append(s.Cells, c)
	s.byID[c.ID] = c
}

// allocateID returns a fresh id disjoint from every id currently in
// use. Ids are never reused.
func (s *TrackedSet) allocateID() int {
	next := 1
	for id := range s.byID {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// Apply folds one scan's matching outcome into the set. Matched old
// cells keep their id and full history and absorb the new cell's
// fields plus a fresh snapshot; unmatched new cells become new tracks
// with freshly allocated ids. Unmatched old cells are left untouched;
// their fate is a separate policy decision. Re-applying the identical
// scan is idempotent: an existing snapshot with the same timestamp is
// updated in place rather than duplicated.
func (s *TrackedSet) Apply(oldCells, newCells []*CandidateCell, matches []Match) {
	for _, mt := range matches {
		oldCell := oldCells[mt.OldIndex]
		newCell := newCells[mt.NewIndex]

		tracked := s.byID[oldCell.ID]
		if tracked == nil {
			// Defensive: the matched track vanished from the set.
			// Recreate it from the old cell so identity survives.
			monitoring.Logf("track: cell id %d missing from tracked set, recreating", oldCell.ID)
			tracked = trackFromCandidate(oldCell.ID, oldCell)
			s.add(tracked)
		}
		s.updateTrack(tracked, newCell)
	}

	matchedNew := make(map[int]bool, len(matches))
	for _, mt := range matches {
		matchedNew[mt.NewIndex] = true
	}
	created := 0
	for j, newCell := range newCells {
		if matchedNew[j] {
			continue
		}
		id := s.allocateID()
		s.add(trackFromCandidate(id, newCell))
		created++
	}
	if created > 0 {
		monitoring.Logf("track: created %d new tracks, %d total", created, len(s.Cells))
	}
}

// updateTrack mirrors the new detection onto the track's top-level
// fields, upserts the snapshot for its scan time, and refreshes the
// motion vector.
func (s *TrackedSet) updateTrack(tracked *TrackedCell, c *CandidateCell) {
	tracked.NumGates = c.NumGates
	tracked.MaxDBZ = c.MaxDBZ
	tracked.Centroid = c.Centroid
	tracked.BBox = c.BBox
	tracked.AlphaShape = c.AlphaShape

	upsertSnapshot(tracked, snapshotOf(c))
	updateMotionVectors(tracked)
}

// upsertSnapshot appends the snapshot unless one with the same
// timestamp exists, in which case that entry's fields are updated in
// place, preserving any enrichment fields it carries. History is kept
// sorted ascending by timestamp.
func upsertSnapshot(tracked *TrackedCell, snap *HistorySnapshot) {
	for _, existing := range tracked.History {
		if existing.Timestamp == snap.Timestamp {
			existing.MaxDBZ = snap.MaxDBZ
			existing.NumGates = snap.NumGates
			existing.Centroid = snap.Centroid
			return
		}
	}
	tracked.History = append(tracked.History, snap)
	sort.SliceStable(tracked.History, func(i, j int) bool {
		return tracked.History[i].Timestamp < tracked.History[j].Timestamp
	})
}

// snapshotOf builds the history record for one detection.
func snapshotOf(c *CandidateCell) *HistorySnapshot {
	return &HistorySnapshot{
		Timestamp: c.ScanTime,
		MaxDBZ:    c.MaxDBZ,
		NumGates:  c.NumGates,
		Centroid:  c.Centroid,
	}
}

// trackFromCandidate promotes a detection into a new track with a
// single seed snapshot.
func trackFromCandidate(id int, c *CandidateCell) *TrackedCell {
	return &TrackedCell{
		ID:         id,
		NumGates:   c.NumGates,
		MaxDBZ:     c.MaxDBZ,
		Centroid:   c.Centroid,
		BBox:       c.BBox,
		AlphaShape: c.AlphaShape,
		History:    []*HistorySnapshot{snapshotOf(c)},
	}
}

// AsCandidates projects the tracked cells into candidate form for
// matching against a new scan. The candidate ids carry the persistent
// track ids and the index order mirrors s.Cells.
func (s *TrackedSet) AsCandidates() []*CandidateCell {
	out := make([]*CandidateCell, len(s.Cells))
	for i, t := range s.Cells {
		out[i] = &CandidateCell{
			ID:         t.ID,
			NumGates:   t.NumGates,
			MaxDBZ:     t.MaxDBZ,
			Centroid:   t.Centroid,
			AlphaShape: t.AlphaShape,
			BBox:       t.BBox,
		}
	}
	return out
}
