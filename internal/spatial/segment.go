// internal/spatial/segment.go

package spatial

import (
	"math"

	"avoidance-core/internal/angle"
)

func heading(hdg float64) (float64, float64) {
	r := angle.Rad(hdg)
	return math.Sin(r), math.Cos(r)
}

// ClosestPointOnSeg is the point of segment a-b nearest to p.
func ClosestPointOnSeg(p, a, b Point) Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return Point{X: a.X + t*dx, Y: a.Y + t*dy}
}

// DistPointToSeg is the distance from p to segment a-b.
func DistPointToSeg(p, a, b Point) float64 {
	return DistanceBetween(p, ClosestPointOnSeg(p, a, b))
}

// SegIntersect returns the crossing point of segments a-b and c-d.
func SegIntersect(a, b, c, d Point) (Point, bool) {
	r := Point{X: b.X - a.X, Y: b.Y - a.Y}
	s := Point{X: d.X - c.X, Y: d.Y - c.Y}
	den := r.X*s.Y - r.Y*s.X
	qp := Point{X: c.X - a.X, Y: c.Y - a.Y}
	if math.Abs(den) < 1e-12 {
		// parallel: only colinear overlap counts
		if math.Abs(qp.X*r.Y-qp.Y*r.X) > tol {
			return Point{}, false
		}
		for _, p := range []Point{a, b} {
			if DistPointToSeg(p, c, d) < tol {
				return p, true
			}
		}
		for _, p := range []Point{c, d} {
			if DistPointToSeg(p, a, b) < tol {
				return p, true
			}
		}
		return Point{}, false
	}
	t := (qp.X*s.Y - qp.Y*s.X) / den
	u := (qp.X*r.Y - qp.Y*r.X) / den
	if t < -tol || t > 1+tol || u < -tol || u > 1+tol {
		return Point{}, false
	}
	return Point{X: a.X + t*r.X, Y: a.Y + t*r.Y}, true
}

// DistSegToSeg returns the distance between path segment a-b and segment c-d
// together with the point on a-b where it is attained.
func DistSegToSeg(a, b, c, d Point) (float64, Point) {
	if p, ok := SegIntersect(a, b, c, d); ok {
		return 0, p
	}
	best, pt := DistPointToSeg(a, c, d), a
	if v := DistPointToSeg(b, c, d); v < best {
		best, pt = v, b
	}
	for _, q := range []Point{c, d} {
		onPath := ClosestPointOnSeg(q, a, b)
		if v := DistanceBetween(q, onPath); v < best {
			best, pt = v, onPath
		}
	}
	return best, pt
}

// RaySegIntersect returns the distance along the ray from o at heading hdg to
// segment a-b.
func RaySegIntersect(o Point, hdg float64, a, b Point) (float64, bool) {
	dx, dy := heading(hdg)
	ex, ey := b.X-a.X, b.Y-a.Y
	den := dx*ey - dy*ex
	ax, ay := a.X-o.X, a.Y-o.Y
	if math.Abs(den) < 1e-12 {
		if math.Abs(ax*dy-ay*dx) > tol {
			return 0, false
		}
		ta := ax*dx + ay*dy
		tb := (b.X-o.X)*dx + (b.Y-o.Y)*dy
		switch {
		case ta < 0 && tb < 0:
			return 0, false
		case ta < 0 || tb < 0:
			return 0, true
		default:
			return math.Min(ta, tb), true
		}
	}
	t := (ax*ey - ay*ex) / den
	u := (ax*dy - ay*dx) / den
	if t < -tol || u < -tol || u > 1+tol {
		return 0, false
	}
	return math.Max(t, 0), true
}

// distPointToRay returns the distance from q to the ray and the nearest ray point.
func distPointToRay(q, o Point, hdg float64) (float64, Point) {
	dx, dy := heading(hdg)
	t := (q.X-o.X)*dx + (q.Y-o.Y)*dy
	if t <= 0 {
		return DistanceBetween(q, o), o
	}
	p := Point{X: o.X + t*dx, Y: o.Y + t*dy}
	return DistanceBetween(q, p), p
}

// SegRayCPA is the closest approach between the ray from o at heading hdg and
// segment a-b, with the ray point where it is attained.
func SegRayCPA(o Point, hdg float64, a, b Point) (float64, Point) {
	if t, ok := RaySegIntersect(o, hdg, a, b); ok {
		x, y := angle.Project(o.X, o.Y, hdg, t)
		return 0, Point{X: x, Y: y}
	}
	best, pt := DistPointToSeg(o, a, b), o
	for _, q := range []Point{a, b} {
		if d, p := distPointToRay(q, o, hdg); d < best {
			best, pt = d, p
		}
	}
	return best, pt
}

// DistSegToPoly returns the closest approach of path segment a-b to the polygon
// and the point on a-b where it is attained. A crossing reports the crossing
// nearest to a.
func DistSegToPoly(a, b Point, poly Polygon) (float64, Point) {
	if poly.Contains(a) {
		return 0, a
	}
	best, pt := math.Inf(1), a
	hitD := math.Inf(1)
	for i := range poly {
		c, d := poly.edge(i)
		dist, p := DistSegToSeg(a, b, c, d)
		if dist == 0 {
			if along := DistanceBetween(a, p); along < hitD {
				hitD, best, pt = along, 0, p
			}
			continue
		}
		if best > 0 && dist < best {
			best, pt = dist, p
		}
	}
	return best, pt
}
