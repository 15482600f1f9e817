package storm

import (
	"github.com/ctessum/geom"

	"github.com/ewsofficial/EdgeWARN/internal/units"
)

// GeometryKind discriminates the boundary geometry a cell ended up
// with. Masks with fewer than three points cannot form a polygon and
// degrade to a point or line; downstream code falls back to the bbox.
type GeometryKind int

const (
	GeometryEmpty GeometryKind = iota
	GeometryPoint
	GeometryLine
	GeometryPolygon
)

// Geometry is the variant result of boundary construction. For
// GeometryPolygon, Points is a closed [lon, lat] ring (first point
// repeated last). For the degenerate kinds it holds the raw points.
type Geometry struct {
	Kind   GeometryKind
	Points [][2]float64
}

// Ring returns the polygon ring, or nil for non-polygon geometries.
func (g Geometry) Ring() [][2]float64 {
	if g.Kind != GeometryPolygon {
		return nil
	}
	return g.Points
}

// Envelope returns the lat/lon bounding box of the geometry's points,
// or nil if there are none.
func (g Geometry) Envelope() *BBox {
	return envelopeOf(g.Points)
}

func envelopeOf(points [][2]float64) *BBox {
	if len(points) == 0 {
		return nil
	}
	b := &BBox{
		LatMin: points[0][1], LatMax: points[0][1],
		LonMin: points[0][0], LonMax: points[0][0],
	}
	for _, p := range points[1:] {
		b.LonMin = min(b.LonMin, p[0])
		b.LonMax = max(b.LonMax, p[0])
		b.LatMin = min(b.LatMin, p[1])
		b.LatMax = max(b.LatMax, p[1])
	}
	return b
}

// largestRing picks the ring with the greatest absolute shoelace area.
// Alpha-shape construction can decompose into several disjoint rings;
// only the dominant one represents the cell.
func largestRing(rings [][][2]float64) [][2]float64 {
	var best [][2]float64
	bestArea := -1.0
	for _, ring := range rings {
		a := ringArea(ring)
		if a < 0 {
			a = -a
		}
		if a > bestArea {
			bestArea = a
			best = ring
		}
	}
	return best
}

// ringArea is the signed shoelace area of a closed ring in squared
// degrees. Sign reflects winding order.
func ringArea(ring [][2]float64) float64 {
	if len(ring) < 4 {
		return 0
	}
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}

// ringToPolygon converts a closed [lon, lat] ring to a geom.Polygon.
func ringToPolygon(ring [][2]float64) geom.Polygon {
	pts := make([]geom.Point, len(ring))
	for i, p := range ring {
		pts[i] = geom.Point{X: p[0], Y: p[1]}
	}
	return geom.Polygon{pts}
}

// cellPolygon returns the cell's footprint as a geom.Polygon,
// preferring the alpha-shape ring and falling back to the bbox
// rectangle. Returns nil when the cell has no usable geometry.
func cellPolygon(c *CandidateCell) geom.Polygon {
	if c.Polygonal() {
		return ringToPolygon(c.AlphaShape)
	}
	if c.BBox != nil {
		return ringToPolygon(c.BBox.Ring())
	}
	return nil
}

// polygonalRings flattens a geometry-operation result into its
// exterior rings as [lon, lat] point lists.
func polygonalRings(p geom.Polygonal) [][][2]float64 {
	if p == nil {
		return nil
	}
	var out [][][2]float64
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			pts := make([][2]float64, len(ring))
			for i, pt := range ring {
				pts[i] = [2]float64{pt.X, pt.Y}
			}
			out = append(out, pts)
		}
	}
	return out
}

// polygonalAreaKm2 sums the latitude-corrected areas of a geometry
// result's rings.
func polygonalAreaKm2(p geom.Polygonal) float64 {
	var total float64
	for _, ring := range polygonalRings(p) {
		total += units.PolygonAreaKm2(ring)
	}
	return total
}

// cellAreaKm2 is the cell's footprint area, zero when it has no
// polygon or bbox geometry.
func cellAreaKm2(c *CandidateCell) float64 {
	if c.Polygonal() {
		return units.PolygonAreaKm2(c.AlphaShape)
	}
	if c.BBox != nil {
		return units.PolygonAreaKm2(c.BBox.Ring())
	}
	return 0
}
