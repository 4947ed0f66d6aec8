// internal/spatial/bearing.go

package spatial

import (
	"math"
	"sort"

	"avoidance-core/internal/angle"
)

// PolyRayCPA is the closest approach between the ray from o at heading hdg and
// the polygon. Stem is the distance along the ray to Pt.
func PolyRayCPA(o Point, hdg float64, poly Polygon) CPA {
	if len(poly) == 0 {
		return CPA{Dist: math.Inf(1), Pt: o}
	}
	if poly.Contains(o) {
		return CPA{Dist: 0, Pt: o}
	}
	if d := poly.DistToInDir(o, hdg); d >= 0 {
		x, y := angle.Project(o.X, o.Y, hdg, d)
		return CPA{Dist: 0, Pt: Point{X: x, Y: y}, Stem: d}
	}
	best := CPA{Dist: math.Inf(1), Pt: o}
	for i := range poly {
		a, b := poly.edge(i)
		if d, p := SegRayCPA(o, hdg, a, b); d < best.Dist {
			best = CPA{Dist: d, Pt: p, Stem: DistanceBetween(o, p)}
		}
	}
	return best
}

// BearingMinMaxToPoly returns the tangent bearings from p to the polygon as a
// clockwise arc covering every vertex. It fails when p is inside the polygon.
func BearingMinMaxToPoly(p Point, poly Polygon) (angle.Interval, bool) {
	if len(poly) == 0 || poly.Contains(p) {
		return angle.Interval{}, false
	}
	bngs := make([]float64, 0, len(poly))
	for _, v := range poly {
		bngs = append(bngs, angle.RelAng(p.X, p.Y, v.X, v.Y))
	}
	sort.Float64s(bngs)

	// the arc is the complement of the widest empty gap between bearings
	n := len(bngs)
	gapAt, gap := n-1, bngs[0]+360-bngs[n-1]
	for i := 0; i < n-1; i++ {
		if g := bngs[i+1] - bngs[i]; g > gap {
			gapAt, gap = i, g
		}
	}
	return angle.Interval{Min: bngs[(gapAt+1)%n], Max: bngs[gapAt]}, true
}

// PolyAft reports whether every vertex of the polygon lies more than xbng
// degrees abaft the beam of a platform at p heading hdg. xbng is clamped to
// [-90, 90].
func PolyAft(p Point, hdg float64, poly Polygon, xbng float64) bool {
	if len(poly) == 0 {
		return false
	}
	xbng = math.Max(-90, math.Min(90, xbng))
	for _, v := range poly {
		rb := angle.RelBearing(p.X, p.Y, hdg, v.X, v.Y)
		if rb <= 90+xbng || rb >= 270-xbng {
			return false
		}
	}
	return true
}
