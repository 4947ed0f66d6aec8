// internal/spatial/seglr.go

package spatial

import "math"

// Seglr is a chain of segments followed by a ray leaving the last vertex at
// RayAngle. It models the path of a turning platform that settles on a heading.
type Seglr struct {
	Verts    []Point
	RayAngle float64
}

// NewSeglr starts a chain at p.
func NewSeglr(p Point, rayAngle float64) Seglr {
	return Seglr{Verts: []Point{p}, RayAngle: rayAngle}
}

// Add appends a vertex.
func (s *Seglr) Add(p Point) {
	s.Verts = append(s.Verts, p)
}

// Clone returns an independent copy.
func (s Seglr) Clone() Seglr {
	out := Seglr{RayAngle: s.RayAngle, Verts: make([]Point, len(s.Verts))}
	copy(out.Verts, s.Verts)
	return out
}

// Last is the vertex the ray leaves from.
func (s Seglr) Last() Point {
	if len(s.Verts) == 0 {
		return Point{}
	}
	return s.Verts[len(s.Verts)-1]
}

// Length is the total length of the segment chain, excluding the ray.
func (s Seglr) Length() float64 {
	l := 0.0
	for i := 1; i < len(s.Verts); i++ {
		l += DistanceBetween(s.Verts[i-1], s.Verts[i])
	}
	return l
}

// CPA is a closest-approach result along a path. Stem is the path length
// travelled before reaching Pt.
type CPA struct {
	Dist float64
	Pt   Point
	Stem float64
}

// Hit reports whether the path touches the polygon.
func (c CPA) Hit() bool { return c.Dist <= tol }

// DistSeglrToPoly walks the chain and then the ray, returning the first point
// of contact or, if the path never touches the polygon, the closest approach.
func DistSeglrToPoly(s Seglr, poly Polygon) CPA {
	if len(s.Verts) == 0 || len(poly) == 0 {
		return CPA{Dist: math.Inf(1)}
	}
	best := CPA{Dist: poly.DistTo(s.Verts[0]), Pt: s.Verts[0]}
	if best.Hit() {
		best.Dist = 0
		return best
	}
	stem := 0.0
	for i := 1; i < len(s.Verts); i++ {
		a, b := s.Verts[i-1], s.Verts[i]
		d, p := DistSegToPoly(a, b, poly)
		if d < best.Dist {
			best = CPA{Dist: d, Pt: p, Stem: stem + DistanceBetween(a, p)}
			if best.Hit() {
				best.Dist = 0
				return best
			}
		}
		stem += DistanceBetween(a, b)
	}
	ray := PolyRayCPA(s.Last(), s.RayAngle, poly)
	if ray.Dist < best.Dist {
		ray.Stem += stem
		best = ray
	}
	return best
}
