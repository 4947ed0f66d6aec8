// internal/spatial/geometry.go

// Package spatial is the planar geometry used by the avoidance core: points,
// convex polygons, segment and ray closest-approach math, buffering with
// rounded corners and polygon spec strings.
package spatial

import (
	"math"

	"avoidance-core/internal/angle"
)

// tol is the geometric tolerance used for boundary and colinearity tests.
const tol = 1e-7

// Point is a 2D point.
type Point struct {
	X, Y float64
}

// Polygon is a closed ring of vertices; the first vertex is not repeated.
type Polygon []Point

// BoundingBox is an axis-aligned rectangle.
type BoundingBox struct {
	Min, Max Point
}

// Circle is a disc.
type Circle struct {
	Center Point
	Radius float64
}

// DistanceBetween is the Euclidean distance between two points.
func DistanceBetween(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// Clone returns an independent copy.
func (poly Polygon) Clone() Polygon {
	if poly == nil {
		return nil
	}
	out := make(Polygon, len(poly))
	copy(out, poly)
	return out
}

func (poly Polygon) edge(i int) (Point, Point) {
	return poly[i], poly[(i+1)%len(poly)]
}

// Bounds returns the bounding box.
func (poly Polygon) Bounds() BoundingBox {
	if len(poly) == 0 {
		return BoundingBox{}
	}
	bb := BoundingBox{Min: poly[0], Max: poly[0]}
	for _, p := range poly[1:] {
		bb.Min.X = math.Min(bb.Min.X, p.X)
		bb.Min.Y = math.Min(bb.Min.Y, p.Y)
		bb.Max.X = math.Max(bb.Max.X, p.X)
		bb.Max.Y = math.Max(bb.Max.Y, p.Y)
	}
	return bb
}

// Center is the center of the bounding box.
func (poly Polygon) Center() Point {
	bb := poly.Bounds()
	return Point{X: (bb.Min.X + bb.Max.X) / 2, Y: (bb.Min.Y + bb.Max.Y) / 2}
}

// SignedArea is positive for counter-clockwise rings in x/y coordinates.
func (poly Polygon) SignedArea() float64 {
	if len(poly) < 3 {
		return 0
	}
	a := 0.0
	for i := range poly {
		p, q := poly.edge(i)
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// Area is the unsigned area.
func (poly Polygon) Area() float64 {
	return math.Abs(poly.SignedArea())
}

// Centroid is the area centroid, falling back to the vertex average for
// degenerate rings.
func (poly Polygon) Centroid() Point {
	if len(poly) == 0 {
		return Point{}
	}
	a := poly.SignedArea()
	if math.Abs(a) < tol {
		sx, sy := 0.0, 0.0
		for _, p := range poly {
			sx += p.X
			sy += p.Y
		}
		n := float64(len(poly))
		return Point{X: sx / n, Y: sy / n}
	}
	cx, cy := 0.0, 0.0
	for i := range poly {
		p, q := poly.edge(i)
		f := p.X*q.Y - q.X*p.Y
		cx += (p.X + q.X) * f
		cy += (p.Y + q.Y) * f
	}
	return Point{X: cx / (6 * a), Y: cy / (6 * a)}
}

// IsConvex reports whether the ring is a simple convex polygon with at least
// three vertices and non-zero area. Colinear and repeated vertices are tolerated.
func (poly Polygon) IsConvex() bool {
	n := len(poly)
	if n < 3 || poly.Area() < tol {
		return false
	}
	sign := 0
	turning := 0.0
	for i := 0; i < n; i++ {
		a, b, c := poly[i], poly[(i+1)%n], poly[(i+2)%n]
		if DistanceBetween(a, b) < tol || DistanceBetween(b, c) < tol {
			continue
		}
		cr := cross(a, b, c)
		in := angle.RelAng(a.X, a.Y, b.X, b.Y)
		out := angle.RelAng(b.X, b.Y, c.X, c.Y)
		turning += angle.Wrap180(out - in)
		if math.Abs(cr) < tol*DistanceBetween(a, b)*DistanceBetween(b, c) {
			continue
		}
		s := 1
		if cr < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return sign != 0 && math.Abs(math.Abs(turning)-360) < 1e-3
}

// OnBoundary reports whether p lies on an edge.
func (poly Polygon) OnBoundary(p Point) bool {
	for i := range poly {
		a, b := poly.edge(i)
		if DistPointToSeg(p, a, b) < tol {
			return true
		}
	}
	return false
}

// Contains reports whether p lies inside the polygon or on its boundary.
func (poly Polygon) Contains(p Point) bool {
	if len(poly) < 3 {
		return false
	}
	if poly.OnBoundary(p) {
		return true
	}
	inside := false
	for i := range poly {
		a, b := poly.edge(i)
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xc := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < xc {
				inside = !inside
			}
		}
	}
	return inside
}

// ContainsPoly reports whether every vertex of other lies within poly. For a
// convex poly this is full containment.
func (poly Polygon) ContainsPoly(other Polygon) bool {
	if len(other) == 0 {
		return false
	}
	for _, p := range other {
		if !poly.Contains(p) && poly.DistTo(p) > 1e-6 {
			return false
		}
	}
	return true
}

// ClosestPoint is the nearest boundary point to p.
func (poly Polygon) ClosestPoint(p Point) Point {
	best := Point{}
	bestD := math.Inf(1)
	for i := range poly {
		a, b := poly.edge(i)
		q := ClosestPointOnSeg(p, a, b)
		if d := DistanceBetween(p, q); d < bestD {
			best, bestD = q, d
		}
	}
	return best
}

// DistTo is the distance from p to the polygon, 0 when p is inside.
func (poly Polygon) DistTo(p Point) float64 {
	if len(poly) == 0 {
		return math.Inf(1)
	}
	if poly.Contains(p) {
		return 0
	}
	return DistanceBetween(p, poly.ClosestPoint(p))
}

// DistToInDir is the distance from p along compass heading hdg to the first
// edge crossing, or -1 when the ray misses.
func (poly Polygon) DistToInDir(p Point, hdg float64) float64 {
	best := -1.0
	for i := range poly {
		a, b := poly.edge(i)
		if d, ok := RaySegIntersect(p, hdg, a, b); ok && (best < 0 || d < best) {
			best = d
		}
	}
	return best
}

// MaxRadius is the largest distance from c to any vertex.
func (poly Polygon) MaxRadius(c Point) float64 {
	r := 0.0
	for _, p := range poly {
		r = math.Max(r, DistanceBetween(c, p))
	}
	return r
}
