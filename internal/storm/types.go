package storm

import (
	"encoding/json"
	"fmt"
)

// LatLon is a geographic position. The wire form is a two-element
// [lat, lon] array to stay compatible with existing state files.
type LatLon struct {
	Lat float64
	Lon float64
}

// MarshalJSON encodes the position as [lat, lon].
func (p LatLon) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lon})
}

// UnmarshalJSON decodes a [lat, lon] array.
func (p *LatLon) UnmarshalJSON(data []byte) error {
	var arr [2]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("centroid: %w", err)
	}
	p.Lat = arr[0]
	p.Lon = arr[1]
	return nil
}

// BBox is a latitude/longitude envelope.
type BBox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Union returns the envelope covering both boxes.
func (b BBox) Union(other BBox) BBox {
	return BBox{
		LatMin: min(b.LatMin, other.LatMin),
		LatMax: max(b.LatMax, other.LatMax),
		LonMin: min(b.LonMin, other.LonMin),
		LonMax: max(b.LonMax, other.LonMax),
	}
}

// WithinBuffer reports whether the two boxes come within the given
// degree buffers of each other. The buffer is applied to b only,
// matching the small-into-large merge test.
func (b BBox) WithinBuffer(other BBox, latBuf, lonBuf float64) bool {
	return !(b.LonMax+lonBuf < other.LonMin ||
		b.LonMin-lonBuf > other.LonMax ||
		b.LatMax+latBuf < other.LatMin ||
		b.LatMin-latBuf > other.LatMax)
}

// Ring returns the closed [lon, lat] ring tracing the box, for use as
// a fallback geometry when no boundary polygon is available.
func (b BBox) Ring() [][2]float64 {
	return [][2]float64{
		{b.LonMin, b.LatMin},
		{b.LonMin, b.LatMax},
		{b.LonMax, b.LatMax},
		{b.LonMax, b.LatMin},
		{b.LonMin, b.LatMin},
	}
}

// CandidateCell is one detected storm footprint within a single scan.
// It lives only for the duration of one pipeline run; identity across
// scans is carried by TrackedCell.
type CandidateCell struct {
	// ID is scan-local during detection. When candidates are derived
	// from previously tracked cells for matching, it carries the
	// persistent track id instead.
	ID int

	// Gates holds the flat grid indices claimed by this cell.
	Gates []int

	NumGates   int
	MaxDBZ     float64
	Centroid   LatLon
	AlphaShape [][2]float64 // closed [lon, lat] ring, empty if <3 points
	BBox       *BBox
	ScanTime   string
}

// Polygonal reports whether the cell carries a usable boundary ring.
func (c *CandidateCell) Polygonal() bool {
	return len(c.AlphaShape) >= 3
}

// HistorySnapshot is one per-scan record in a tracked cell's history.
// Enrichment stages append fields of their own under each entry; those
// are preserved verbatim in Extra and round-tripped untouched.
type HistorySnapshot struct {
	Timestamp string
	MaxDBZ    float64
	NumGates  int
	Centroid  LatLon

	// Motion vector in metres east / metres north over DT seconds,
	// present once the cell has at least two snapshots.
	DX *float64
	DY *float64
	DT *float64

	Extra map[string]json.RawMessage
}

// snapshotKnownFields lists the wire names owned by this package.
// Anything else round-trips through Extra.
var snapshotKnownFields = map[string]bool{
	"timestamp":            true,
	"max_reflectivity_dbz": true,
	"num_gates":            true,
	"centroid":             true,
	"dx":                   true,
	"dy":                   true,
	"dt":                   true,
}

// MarshalJSON writes the snapshot's own fields followed by any
// enrichment fields carried in Extra.
func (s *HistorySnapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, 7+len(s.Extra))
	put := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("snapshot field %s: %w", key, err)
		}
		out[key] = raw
		return nil
	}
	if err := put("timestamp", s.Timestamp); err != nil {
		return nil, err
	}
	if err := put("max_reflectivity_dbz", s.MaxDBZ); err != nil {
		return nil, err
	}
	if err := put("num_gates", s.NumGates); err != nil {
		return nil, err
	}
	if err := put("centroid", s.Centroid); err != nil {
		return nil, err
	}
	if s.DX != nil {
		if err := put("dx", *s.DX); err != nil {
			return nil, err
		}
	}
	if s.DY != nil {
		if err := put("dy", *s.DY); err != nil {
			return nil, err
		}
	}
	if s.DT != nil {
		if err := put("dt", *s.DT); err != nil {
			return nil, err
		}
	}
	for key, raw := range s.Extra {
		if !snapshotKnownFields[key] {
			out[key] = raw
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the known fields and stashes everything else in
// Extra for pass-through.
func (s *HistorySnapshot) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	get := func(key string, dst interface{}) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("snapshot field %s: %w", key, err)
		}
		return nil
	}
	if err := get("timestamp", &s.Timestamp); err != nil {
		return err
	}
	if err := get("max_reflectivity_dbz", &s.MaxDBZ); err != nil {
		return err
	}
	if err := get("num_gates", &s.NumGates); err != nil {
		return err
	}
	if err := get("centroid", &s.Centroid); err != nil {
		return err
	}
	if err := get("dx", &s.DX); err != nil {
		return err
	}
	if err := get("dy", &s.DY); err != nil {
		return err
	}
	if err := get("dt", &s.DT); err != nil {
		return err
	}
	for key, raw := range fields {
		if snapshotKnownFields[key] {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[key] = raw
	}
	return nil
}

// TrackedCell is one storm's persistent identity across scans. The id
// is assigned once at first detection and never reused; the top-level
// fields mirror the latest matched snapshot.
type TrackedCell struct {
	ID         int                `json:"id"`
	NumGates   int                `json:"num_gates"`
	MaxDBZ     float64            `json:"max_reflectivity_dbz"`
	Centroid   LatLon             `json:"centroid"`
	BBox       *BBox              `json:"bbox"`
	AlphaShape [][2]float64       `json:"alpha_shape"`
	History    []*HistorySnapshot `json:"storm_history"`
}

// LatestSnapshot returns the most recent history entry, or nil.
func (c *TrackedCell) LatestSnapshot() *HistorySnapshot {
	if len(c.History) == 0 {
		return nil
	}
	return c.History[len(c.History)-1]
}

// Match pairs an old (tracked) cell index with a new detection index
// at the cost the assignment solver accepted.
type Match struct {
	OldIndex int
	NewIndex int
	Cost     float64
}

// MatchQuality records which solver produced a match set.
type MatchQuality string

const (
	// MatchOptimal means the exact assignment solver succeeded.
	MatchOptimal MatchQuality = "optimal"
	// MatchFallback means the exact solver failed and the greedy
	// matcher produced the result; quality is degraded.
	MatchFallback MatchQuality = "fallback"
	// MatchInfeasible means no pair had a cost below the penalty
	// threshold; the match set is empty.
	MatchInfeasible MatchQuality = "infeasible"
)

// MatchResult is the full outcome of one matching pass: accepted
// pairs plus the leftover indices on both sides.
type MatchResult struct {
	Quality      MatchQuality
	Matches      []Match
	UnmatchedOld []int
	UnmatchedNew []int
}
