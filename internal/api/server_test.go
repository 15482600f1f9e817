package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/storm"
	"github.com/ewsofficial/EdgeWARN/internal/store"
)

func testTrackedSet() *storm.TrackedSet {
	return storm.NewTrackedSet([]*storm.TrackedCell{
		{
			ID:       1,
			NumGates: 120,
			MaxDBZ:   57.5,
			Centroid: storm.LatLon{Lat: 35.1, Lon: 280.2},
			History: []*storm.HistorySnapshot{
				{Timestamp: "2025-09-13T00:24:39", MaxDBZ: 57.5, NumGates: 120},
			},
		},
		{
			ID:       4,
			NumGates: 60,
			MaxDBZ:   48.0,
			Centroid: storm.LatLon{Lat: 35.4, Lon: 280.6},
		},
	})
}

func testServer(t *testing.T, archive *store.Archive) *Server {
	t.Helper()
	return NewServer(testTrackedSet(), config.EmptyTuningConfig(), archive)
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["tracks"])
}

func TestListCells(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodGet, "/api/cells")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var cells []*storm.TrackedCell
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cells))
	require.Len(t, cells, 2)
	assert.Equal(t, 1, cells[0].ID)
	assert.Equal(t, 4, cells[1].ID)
}

func TestListCellsMethodNotAllowed(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodPost, "/api/cells")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListCellsEmptySetIsArray(t *testing.T) {
	t.Parallel()

	s := NewServer(storm.NewTrackedSet(nil), config.EmptyTuningConfig(), nil)
	w := doRequest(t, s, http.MethodGet, "/api/cells")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestShowCell(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodGet, "/api/cells/4")
	require.Equal(t, http.StatusOK, w.Code)

	var cell storm.TrackedCell
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cell))
	assert.Equal(t, 4, cell.ID)
	assert.Equal(t, 48.0, cell.MaxDBZ)
}

func TestShowCellNotFound(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodGet, "/api/cells/99")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowCellBadID(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodGet, "/api/cells/banana")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShowConfig(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodGet, "/api/config")
	require.Equal(t, http.StatusOK, w.Code)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, 50.0, cfg["seed_dbz"])
	assert.Equal(t, 40.0, cfg["expand_dbz"])
	assert.Equal(t, float64(25), cfg["min_gates"])
}

func TestHistoryNoArchive(t *testing.T) {
	t.Parallel()

	w := doRequest(t, testServer(t, nil), http.MethodGet, "/api/history?cell_id=1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryFromArchive(t *testing.T) {
	t.Parallel()

	archive, err := store.OpenArchive(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	set := testTrackedSet()
	dx, dy, dt := 600.0, 800.0, 100.0
	set.Get(1).History[0].DX = &dx
	set.Get(1).History[0].DY = &dy
	set.Get(1).History[0].DT = &dt

	res := &storm.ScanResult{RunID: "run-1", ScanTime: "2025-09-13T00:24:39",
		Matching: storm.MatchResult{Quality: storm.MatchOptimal}}
	require.NoError(t, archive.RecordScan(res, set))

	s := NewServer(set, config.EmptyTuningConfig(), archive)

	w := doRequest(t, s, http.MethodGet, "/api/history?cell_id=1")
	require.Equal(t, http.StatusOK, w.Code)

	var history []struct {
		store.CellSnapshot
		Speed *float64 `json:"speed"`
		Units string   `json:"units"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].CellID)
	assert.Equal(t, "mps", history[0].Units)
	// hypot(600, 800) / 100 s = 10 m/s
	require.NotNil(t, history[0].Speed)
	assert.InDelta(t, 10.0, *history[0].Speed, 1e-9)

	w = doRequest(t, s, http.MethodGet, "/api/history?cell_id=1&units=mph")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.NotNil(t, history[0].Speed)
	assert.InDelta(t, 22.3694, *history[0].Speed, 1e-4)

	w = doRequest(t, s, http.MethodGet, "/api/history?cell_id=1&units=furlongs")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/history?cell_id=banana")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/history?cell_id=777")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestSetTrackedSwapsCollection(t *testing.T) {
	t.Parallel()

	s := testServer(t, nil)
	s.SetTracked(storm.NewTrackedSet(nil))

	w := doRequest(t, s, http.MethodGet, "/api/cells")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
