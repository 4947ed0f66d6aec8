// internal/spatial/expand.go

package spatial

import (
	"errors"
	"fmt"
	"math"

	"avoidance-core/internal/angle"
)

// ErrNotConvex is returned when an operation requires a convex polygon.
var ErrNotConvex = errors.New("polygon is not convex")

// Expander grows a convex polygon outward by a buffer distance. Edges are
// pushed out along their outward normal and corners are rounded with a vertex
// every DegreeDelta degrees.
type Expander struct {
	DegreeDelta     float64
	VertexProximity float64
}

// NewExpander returns an expander with the given corner resolution, clamped to
// [0.2, 45] degrees, and a 1 unit vertex proximity threshold.
func NewExpander(degreeDelta float64) Expander {
	return Expander{
		DegreeDelta:     math.Max(0.2, math.Min(45, degreeDelta)),
		VertexProximity: 1,
	}
}

func (e Expander) proximity() float64 {
	return math.Max(0, math.Min(10, e.VertexProximity))
}

// Buffer returns poly grown by buff. A non-positive buffer returns a copy.
func (e Expander) Buffer(poly Polygon, buff float64) (Polygon, error) {
	if !poly.IsConvex() {
		return nil, ErrNotConvex
	}
	if buff <= 0 {
		return poly.Clone(), nil
	}
	delta := e.DegreeDelta
	if delta <= 0 {
		delta = 5
	}
	n := len(poly)
	cen := poly.Centroid()

	// offset endpoints per edge: starts[i], ends[i] belong to edge i -> i+1
	starts := make([]Point, n)
	ends := make([]Point, n)
	for i := 0; i < n; i++ {
		a, b := poly.edge(i)
		if DistanceBetween(a, b) < tol {
			starts[i], ends[i] = a, b
			continue
		}
		eang := angle.RelAng(a.X, a.Y, b.X, b.Y)
		mid := Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
		toCen := angle.RelAng(mid.X, mid.Y, cen.X, cen.Y)
		out := eang + 90
		if angle.Diff(eang-90, toCen) > angle.Diff(out, toCen) {
			out = eang - 90
		}
		sx, sy := angle.Project(a.X, a.Y, out, buff)
		ex, ey := angle.Project(b.X, b.Y, out, buff)
		starts[i], ends[i] = Point{X: sx, Y: sy}, Point{X: ex, Y: ey}
	}

	var out Polygon
	add := func(p Point) {
		if len(out) > 0 && DistanceBetween(out[len(out)-1], p) < e.proximity() {
			return
		}
		out = append(out, p)
	}
	for i := 0; i < n; i++ {
		v := poly[(i+1)%n]
		p1, p2 := ends[i], starts[(i+1)%n]
		add(p1)
		a1 := angle.RelAng(v.X, v.Y, p1.X, p1.Y)
		a2 := angle.RelAng(v.X, v.Y, p2.X, p2.Y)
		sweep := angle.Wrap180(a2 - a1)
		steps := int(math.Abs(sweep) / delta)
		dir := 1.0
		if sweep < 0 {
			dir = -1
		}
		for j := 1; j < steps; j++ {
			x, y := angle.Project(v.X, v.Y, a1+dir*float64(j)*delta, buff)
			add(Point{X: x, Y: y})
		}
		add(p2)
	}
	if len(out) > 1 && DistanceBetween(out[0], out[len(out)-1]) < e.proximity() {
		out = out[:len(out)-1]
	}

	if !out.IsConvex() {
		out = settle(out)
		if !out.IsConvex() {
			return nil, fmt.Errorf("buffer %.2f: %w", buff, ErrNotConvex)
		}
	}
	return out, nil
}

// settle removes the most colinear vertex until the ring is convex or only a
// triangle remains.
func settle(poly Polygon) Polygon {
	out := poly.Clone()
	for len(out) > 3 && !out.IsConvex() {
		n := len(out)
		worst, worstV := 0, math.Inf(1)
		for i := 0; i < n; i++ {
			a, b, c := out[(i+n-1)%n], out[i], out[(i+1)%n]
			if v := math.Abs(cross(a, b, c)); v < worstV {
				worst, worstV = i, v
			}
		}
		out = append(out[:worst], out[worst+1:]...)
	}
	return out
}
