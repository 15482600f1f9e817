package storm

// Shared fixtures for the detection and tracking tests. Test grids
// use a regular 0.01° spacing (roughly 1.1 km north-south) anchored in
// the central US, matching the mosaics the pipeline normally sees.

const (
	testLat0    = 35.0
	testLon0    = 280.0 // 0-360 convention
	testSpacing = 0.01
	testScan    = "2025-09-13T00:24:39"
)

// makeTestGrid builds a rows×cols grid filled with fill dBZ and 1-D
// coordinate axes.
func makeTestGrid(rows, cols int, fill float64) *ReflectivityGrid {
	g := &ReflectivityGrid{
		Rows:     rows,
		Cols:     cols,
		Data:     make([]float64, rows*cols),
		Lat:      make([]float64, rows),
		Lon:      make([]float64, cols),
		ScanTime: testScan,
	}
	for i := range g.Data {
		g.Data[i] = fill
	}
	for r := 0; r < rows; r++ {
		g.Lat[r] = testLat0 + float64(r)*testSpacing
	}
	for c := 0; c < cols; c++ {
		g.Lon[c] = testLon0 + float64(c)*testSpacing
	}
	return g
}

// setPatch writes value into the rectangle [r0,r1)×[c0,c1).
func setPatch(g *ReflectivityGrid, r0, r1, c0, c1 int, value float64) {
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			g.Data[g.Index(r, c)] = value
		}
	}
}

// testCell builds a candidate with a square footprint of the given
// half-width in degrees around the centroid; gate count and peak dBZ
// are taken as given.
func testCell(id, numGates int, lat, lon, halfDeg, maxDBZ float64) *CandidateCell {
	bbox := &BBox{
		LatMin: lat - halfDeg, LatMax: lat + halfDeg,
		LonMin: lon - halfDeg, LonMax: lon + halfDeg,
	}
	return &CandidateCell{
		ID:         id,
		NumGates:   numGates,
		MaxDBZ:     maxDBZ,
		Centroid:   LatLon{Lat: lat, Lon: lon},
		AlphaShape: bbox.Ring(),
		BBox:       bbox,
		ScanTime:   testScan,
	}
}
