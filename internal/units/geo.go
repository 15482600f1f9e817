package units

import "math"

// Geographic conversion constants. Reflectivity mosaics arrive on a
// regular lat/lon grid, so planar approximations with a cos(latitude)
// correction on the east-west axis are accurate at storm scale.
const (
	// KmPerDegLat is the approximate north-south extent of one degree
	// of latitude.
	KmPerDegLat = 111.0

	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0
)

// DegBuffer converts a distance in km to approximate degree offsets at
// the given latitude. Longitude degrees shrink by cos(latitude).
func DegBuffer(latDeg, km float64) (latBuf, lonBuf float64) {
	latBuf = km / KmPerDegLat
	lonBuf = km / (KmPerDegLat * math.Cos(latDeg*math.Pi/180))
	return latBuf, lonBuf
}

// DeltaKm converts a centroid displacement in degrees to east-west and
// north-south kilometres, correcting longitude by the cosine of the
// mean latitude of the two points.
func DeltaKm(lat1, lon1, lat2, lon2 float64) (dxKm, dyKm float64) {
	meanLat := (lat1 + lat2) / 2 * math.Pi / 180
	dxKm = (lon2 - lon1) * KmPerDegLat * math.Cos(meanLat)
	dyKm = (lat2 - lat1) * KmPerDegLat
	return dxKm, dyKm
}

// HaversineKm returns the great-circle distance in km between two
// lat/lon points in degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// LonToPM180 converts a longitude from the 0-360 convention used by
// the mosaic feeds to the -180..180 convention.
func LonToPM180(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}

// LonTo0360 converts a longitude from -180..180 to the 0-360
// convention.
func LonTo0360(lon float64) float64 {
	if lon < 0 {
		return lon + 360
	}
	return lon
}

// PolygonAreaKm2 computes the area of a polygon on the Earth's surface
// in km² using a latitude-corrected shoelace formula. Points are
// (lon, lat) pairs in degrees. Returns 0 for fewer than 3 points.
func PolygonAreaKm2(lonlat [][2]float64) float64 {
	if len(lonlat) < 3 {
		return 0
	}
	rad := math.Pi / 180
	var meanLat float64
	for _, p := range lonlat {
		meanLat += p[1] * rad
	}
	meanLat /= float64(len(lonlat))

	// Project vertices onto a local km plane before the shoelace sum.
	xs := make([]float64, len(lonlat))
	ys := make([]float64, len(lonlat))
	for i, p := range lonlat {
		xs[i] = math.Cos(meanLat) * EarthRadiusKm * p[0] * rad
		ys[i] = EarthRadiusKm * p[1] * rad
	}

	var area float64
	n := len(lonlat)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += xs[i]*ys[j] - xs[j]*ys[i]
	}
	return math.Abs(area) / 2
}
