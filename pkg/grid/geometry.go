package grid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// PolygonFromVertices builds a single-ring polygon from cell vertices.
//
// It returns nil, marking the cell as having no geometry, when any vertex
// is not finite or when fewer than three distinct vertices remain. The ring
// is closed if the last vertex does not repeat the first.
func PolygonFromVertices(vertices []geom.Point) geom.Polygon {
	ring := make([]geom.Point, 0, len(vertices)+1)
	for _, p := range vertices {
		if !finite(p.X) || !finite(p.Y) {
			return nil
		}
		// Collapse consecutive duplicates left by degenerate cells.
		if n := len(ring); n > 0 && ring[n-1] == p {
			continue
		}
		ring = append(ring, p)
	}
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	if len(ring) < 3 {
		return nil
	}
	return geom.Polygon{ensureRingClosure(ring)}
}

// ensureRingClosure appends the first vertex when the ring is open.
func ensureRingClosure(ring []geom.Point) []geom.Point {
	if len(ring) < 3 {
		return ring
	}
	if ring[0] == ring[len(ring)-1] {
		return ring
	}
	closed := make([]geom.Point, len(ring)+1)
	copy(closed, ring)
	closed[len(ring)] = ring[0]
	return closed
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// PolygonBounds returns the bounding box of every vertex of p.
func PolygonBounds(p geom.Polygon) *geom.Bounds {
	b := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, ring := range p {
		for _, pt := range ring {
			b.Min.X = math.Min(b.Min.X, pt.X)
			b.Min.Y = math.Min(b.Min.Y, pt.Y)
			b.Max.X = math.Max(b.Max.X, pt.X)
			b.Max.Y = math.Max(b.Max.Y, pt.Y)
		}
	}
	return b
}

// Intersects reports whether cell and g share at least one point,
// boundaries included. Points, lines, polygons, bounds and collections of
// them are supported; any other geometry yields ErrUnsupportedGeometry.
func Intersects(cell geom.Polygon, g geom.Geom) (bool, error) {
	if len(cell) == 0 {
		return false, nil
	}
	switch g := g.(type) {
	case geom.Point:
		return g.Within(cell) != geom.Outside, nil
	case *geom.Point:
		return g.Within(cell) != geom.Outside, nil
	case geom.MultiPoint:
		for _, p := range g {
			if p.Within(cell) != geom.Outside {
				return true, nil
			}
		}
		return false, nil
	case geom.LineString:
		return lineIntersects(cell, g), nil
	case geom.MultiLineString:
		for _, line := range g {
			if lineIntersects(cell, line) {
				return true, nil
			}
		}
		return false, nil
	case geom.Polygonal:
		return polygonsIntersect(cell, g), nil
	case geom.GeometryCollection:
		for _, member := range g {
			if ok, err := Intersects(cell, member); ok || err != nil {
				return ok, err
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
}

// CheckGeometry returns ErrUnsupportedGeometry when Intersects cannot test
// g, so a clip is rejected before any cell is examined.
func CheckGeometry(g geom.Geom) error {
	switch g := g.(type) {
	case geom.Point, *geom.Point, geom.MultiPoint,
		geom.LineString, geom.MultiLineString, geom.Polygonal:
		return nil
	case geom.GeometryCollection:
		for _, member := range g {
			if err := CheckGeometry(member); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
}

func lineIntersects(cell geom.Polygon, line geom.LineString) bool {
	if len(line) == 0 || !boundsOverlap(PolygonBounds(cell), line.Bounds()) {
		return false
	}
	for _, p := range line {
		if p.Within(cell) != geom.Outside {
			return true
		}
	}
	for i := 1; i < len(line); i++ {
		if crossesBoundary(cell, line[i-1], line[i]) {
			return true
		}
	}
	return false
}

// polygonsIntersect tests each member polygon of other on its own, as
// geom treats overlapping members of a multipolygon as cancelling out.
func polygonsIntersect(cell geom.Polygon, other geom.Polygonal) bool {
	if !boundsOverlap(PolygonBounds(cell), other.Bounds()) {
		return false
	}
	for _, poly := range other.Polygons() {
		if polygonIntersects(cell, poly) {
			return true
		}
	}
	return false
}

// polygonIntersects tests vertex containment both ways and then boundary
// crossings. Two polygons that share a point either hold a vertex of one
// another or have crossing edges.
func polygonIntersects(cell, poly geom.Polygon) bool {
	if len(poly) == 0 || !boundsOverlap(PolygonBounds(cell), PolygonBounds(poly)) {
		return false
	}
	for _, ring := range cell {
		for _, p := range ring {
			if p.Within(poly) != geom.Outside {
				return true
			}
		}
	}
	for _, ring := range poly {
		for _, p := range ring {
			if p.Within(cell) != geom.Outside {
				return true
			}
		}
	}
	for _, ring := range poly {
		for i := range ring {
			if crossesBoundary(cell, ring[i], ring[(i+1)%len(ring)]) {
				return true
			}
		}
	}
	return false
}

// crossesBoundary reports whether segment ab touches any edge of poly.
func crossesBoundary(poly geom.Polygon, a, b geom.Point) bool {
	for _, ring := range poly {
		for i := range ring {
			if segmentsIntersect(a, b, ring[i], ring[(i+1)%len(ring)]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 geom.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

// orientation is positive when c lies left of ab, negative when right and
// zero when the three points are collinear.
func orientation(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment assumes p is collinear with ab.
func onSegment(a, b, p geom.Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

func boundsOverlap(a, b *geom.Bounds) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y
}
