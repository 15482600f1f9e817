package storm

import (
	"math"
	"sort"

	"github.com/fogleman/delaunay"
)

// BuildBoundary computes the concave boundary of a point set. Lower
// alpha relaxes toward the convex hull; higher alpha hugs concavities
// more tightly. Degenerate inputs degrade gracefully: zero points give
// an empty geometry, one a point, two a line, and collinear sets a
// line through the extremes. The caller falls back to the bounding box
// whenever the result is not a polygon.
func BuildBoundary(points [][2]float64, alpha float64) Geometry {
	points = dedupePoints(points)
	switch len(points) {
	case 0:
		return Geometry{Kind: GeometryEmpty}
	case 1:
		return Geometry{Kind: GeometryPoint, Points: points}
	case 2:
		return Geometry{Kind: GeometryLine, Points: points}
	}

	dpts := make([]delaunay.Point, len(points))
	for i, p := range points {
		dpts[i] = delaunay.Point{X: p[0], Y: p[1]}
	}
	tri, err := delaunay.Triangulate(dpts)
	if err != nil || len(tri.Triangles) == 0 {
		// Collinear or otherwise untriangulable: a line through the
		// extreme points is the best available boundary.
		return Geometry{Kind: GeometryLine, Points: extremePoints(points)}
	}

	ring := alphaRing(dpts, tri, alpha)
	if ring == nil {
		return Geometry{Kind: GeometryLine, Points: extremePoints(points)}
	}
	return Geometry{Kind: GeometryPolygon, Points: ring}
}

// alphaRing filters the triangulation by circumradius, extracts the
// boundary edges of the surviving triangles, and chains them into
// closed rings, returning the largest. Triangles whose circumradius
// exceeds 1/alpha are discarded; with alpha <= 0 every triangle
// survives and the result is the convex hull.
func alphaRing(pts []delaunay.Point, tri *delaunay.Triangulation, alpha float64) [][2]float64 {
	kept := filterTriangles(pts, tri, alpha)
	if len(kept) == 0 {
		// Alpha too tight for this point spacing; relax to the full
		// triangulation rather than losing the cell.
		kept = filterTriangles(pts, tri, 0)
	}
	if len(kept) == 0 {
		return nil
	}

	edges := boundaryEdges(kept)
	rings := chainRings(pts, edges)
	if len(rings) == 0 {
		return nil
	}
	return largestRing(rings)
}

type triEdge struct{ a, b int }

// filterTriangles returns the vertex-index triples of triangles whose
// circumradius is below 1/alpha.
func filterTriangles(pts []delaunay.Point, tri *delaunay.Triangulation, alpha float64) [][3]int {
	maxRadius := math.Inf(1)
	if alpha > 0 {
		maxRadius = 1 / alpha
	}
	var kept [][3]int
	for i := 0; i+2 < len(tri.Triangles); i += 3 {
		a, b, c := tri.Triangles[i], tri.Triangles[i+1], tri.Triangles[i+2]
		if circumradius(pts[a], pts[b], pts[c]) < maxRadius {
			kept = append(kept, [3]int{a, b, c})
		}
	}
	return kept
}

// circumradius of the triangle through p1, p2, p3. Degenerate
// triangles report +Inf so they are always filtered out.
func circumradius(p1, p2, p3 delaunay.Point) float64 {
	a := math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
	b := math.Hypot(p3.X-p2.X, p3.Y-p2.Y)
	c := math.Hypot(p1.X-p3.X, p1.Y-p3.Y)
	s := (a + b + c) / 2
	area2 := s * (s - a) * (s - b) * (s - c)
	if area2 <= 0 {
		return math.Inf(1)
	}
	return a * b * c / (4 * math.Sqrt(area2))
}

// boundaryEdges returns the edges that belong to exactly one kept
// triangle; interior edges are shared by two.
func boundaryEdges(triangles [][3]int) []triEdge {
	count := make(map[triEdge]int)
	for _, t := range triangles {
		for _, e := range [3]triEdge{
			normEdge(t[0], t[1]),
			normEdge(t[1], t[2]),
			normEdge(t[2], t[0]),
		} {
			count[e]++
		}
	}
	var edges []triEdge
	for e, n := range count {
		if n == 1 {
			edges = append(edges, e)
		}
	}
	// Map iteration order is random; sort for deterministic chaining.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})
	return edges
}

func normEdge(a, b int) triEdge {
	if a > b {
		a, b = b, a
	}
	return triEdge{a, b}
}

// chainRings walks the boundary edges into closed rings. Each ring is
// returned as a closed [lon, lat] point list (first point repeated
// last).
func chainRings(pts []delaunay.Point, edges []triEdge) [][][2]float64 {
	adj := make(map[int][]int)
	for _, e := range edges {
		adj[e.a] = append(adj[e.a], e.b)
		adj[e.b] = append(adj[e.b], e.a)
	}
	for _, nbrs := range adj {
		sort.Ints(nbrs)
	}

	used := make(map[triEdge]bool)
	var starts []int
	for v := range adj {
		starts = append(starts, v)
	}
	sort.Ints(starts)

	var rings [][][2]float64
	for _, start := range starts {
		for _, first := range adj[start] {
			if used[normEdge(start, first)] {
				continue
			}
			ring := walkRing(adj, used, start, first)
			if len(ring) < 3 {
				continue
			}
			closed := make([][2]float64, 0, len(ring)+1)
			for _, v := range ring {
				closed = append(closed, [2]float64{pts[v].X, pts[v].Y})
			}
			closed = append(closed, closed[0])
			rings = append(rings, closed)
		}
	}
	return rings
}

// walkRing follows unused boundary edges from start until it returns
// to start or runs out of continuations.
func walkRing(adj map[int][]int, used map[triEdge]bool, start, first int) []int {
	ring := []int{start}
	used[normEdge(start, first)] = true
	prev, cur := start, first
	for cur != start {
		ring = append(ring, cur)
		next := -1
		for _, cand := range adj[cur] {
			if cand == prev || used[normEdge(cur, cand)] {
				continue
			}
			next = cand
			break
		}
		if next < 0 {
			// Open chain; not a closed ring.
			return nil
		}
		used[normEdge(cur, next)] = true
		prev, cur = cur, next
	}
	return ring
}

// dedupePoints drops exact duplicates while preserving order. Rings
// fed back through merging repeat their closing vertex; the
// triangulation wants each site once.
func dedupePoints(points [][2]float64) [][2]float64 {
	seen := make(map[[2]float64]bool, len(points))
	out := points[:0:0]
	for _, p := range points {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// extremePoints returns the two most distant points along the longer
// spread axis, for the collinear-fallback line geometry.
func extremePoints(points [][2]float64) [][2]float64 {
	lo, hi := points[0], points[0]
	env := envelopeOf(points)
	byLon := env.LonMax-env.LonMin >= env.LatMax-env.LatMin
	for _, p := range points {
		if byLon {
			if p[0] < lo[0] {
				lo = p
			}
			if p[0] > hi[0] {
				hi = p
			}
		} else {
			if p[1] < lo[1] {
				lo = p
			}
			if p[1] > hi[1] {
				hi = p
			}
		}
	}
	return [][2]float64{lo, hi}
}
