package storm

import (
	"time"

	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
	"github.com/ewsofficial/EdgeWARN/internal/units"
)

// timestampLayouts are the accepted scan-time formats, tried in
// order. State files written by older tooling use a space separator
// and no zone.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseScanTime(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// updateMotionVectors derives the cell's motion from its latest two
// snapshots and stores dx/dy/dt on the newer one: metres east, metres
// north, and elapsed seconds. Raw components rather than speed and
// bearing, so consumers can recompute either deterministically.
// Cells with fewer than two snapshots are left untouched.
func updateMotionVectors(cell *TrackedCell) {
	if len(cell.History) < 2 {
		return
	}
	prev := cell.History[len(cell.History)-2]
	latest := cell.History[len(cell.History)-1]

	t1, ok1 := parseScanTime(prev.Timestamp)
	t2, ok2 := parseScanTime(latest.Timestamp)
	if !ok1 || !ok2 {
		monitoring.Logf("track: cell %d has unparsable history timestamps (%q, %q), skipping motion vector",
			cell.ID, prev.Timestamp, latest.Timestamp)
		return
	}

	dxKm, dyKm := units.DeltaKm(prev.Centroid.Lat, prev.Centroid.Lon, latest.Centroid.Lat, latest.Centroid.Lon)
	dx := dxKm * 1000
	dy := dyKm * 1000
	dt := t2.Sub(t1).Seconds()

	latest.DX = &dx
	latest.DY = &dy
	latest.DT = &dt
}
