package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
	"github.com/ewsofficial/EdgeWARN/internal/storm"
)

// Archive is the optional sqlite history: one row per processed scan
// plus one row per tracked cell at that scan. The JSON state file
// remains the source of truth; the archive only accumulates.
type Archive struct {
	*sql.DB
}

// schema.sql defines the scans and cell_snapshots tables.
//
//go:embed schema.sql
var schemaSQL string

// OpenArchive opens (and if needed initializes) the archive at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}

	monitoring.Logf("archive: initialized schema at %s", path)
	return &Archive{db}, nil
}

// RecordScan stores the scan summary and a snapshot row for every
// tracked cell after the scan was applied.
func (a *Archive) RecordScan(res *storm.ScanResult, set *storm.TrackedSet) error {
	query := `
		INSERT INTO scans (run_id, scan_time, detected, merged, terminated, match_quality, matched, tracked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := a.Exec(query, res.RunID, res.ScanTime,
		res.Detected, res.Merged, res.Terminated,
		string(res.Matching.Quality), len(res.Matching.Matches), set.Len())
	if err != nil {
		return fmt.Errorf("failed to insert scan summary: %v", err)
	}

	for _, cell := range set.Cells {
		if err := a.recordCell(res, cell); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) recordCell(res *storm.ScanResult, cell *storm.TrackedCell) error {
	query := `
		INSERT INTO cell_snapshots (run_id, scan_time, cell_id, num_gates, max_reflectivity_dbz, centroid_lat, centroid_lon, dx_m, dy_m, dt_s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var dx, dy, dt any
	if latest := cell.LatestSnapshot(); latest != nil {
		if latest.DX != nil {
			dx = *latest.DX
		}
		if latest.DY != nil {
			dy = *latest.DY
		}
		if latest.DT != nil {
			dt = *latest.DT
		}
	}

	_, err := a.Exec(query, res.RunID, res.ScanTime, cell.ID, cell.NumGates,
		cell.MaxDBZ, cell.Centroid.Lat, cell.Centroid.Lon, dx, dy, dt)
	if err != nil {
		return fmt.Errorf("failed to insert cell snapshot: %v", err)
	}
	return nil
}

// CellSnapshot is a stored per-cell row.
type CellSnapshot struct {
	RunID    string   `json:"run_id"`
	ScanTime string   `json:"scan_time"`
	CellID   int      `json:"cell_id"`
	NumGates int      `json:"num_gates"`
	MaxDBZ   float64  `json:"max_reflectivity_dbz"`
	Lat      float64  `json:"centroid_lat"`
	Lon      float64  `json:"centroid_lon"`
	DX       *float64 `json:"dx_m,omitempty"`
	DY       *float64 `json:"dy_m,omitempty"`
	DT       *float64 `json:"dt_s,omitempty"`
}

// CellHistory returns the stored snapshots for one cell id, oldest
// first.
func (a *Archive) CellHistory(cellID int) ([]CellSnapshot, error) {
	query := `
		SELECT run_id, scan_time, cell_id, num_gates, max_reflectivity_dbz, centroid_lat, centroid_lon, dx_m, dy_m, dt_s
		FROM cell_snapshots
		WHERE cell_id = ?
		ORDER BY scan_time ASC, id ASC
	`

	rows, err := a.Query(query, cellID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cell history: %v", err)
	}
	defer rows.Close()

	var out []CellSnapshot
	for rows.Next() {
		var s CellSnapshot
		if err := rows.Scan(&s.RunID, &s.ScanTime, &s.CellID, &s.NumGates,
			&s.MaxDBZ, &s.Lat, &s.Lon, &s.DX, &s.DY, &s.DT); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %v", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ScanCount reports the number of scan summary rows.
func (a *Archive) ScanCount() (int, error) {
	var n int
	if err := a.QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count scans: %v", err)
	}
	return n, nil
}
