// internal/platmodel/platmodel.go

// Package platmodel describes where a platform can go next: its pose plus a
// fan of turn paths ("spokes") to port and starboard. Each spoke is a segment
// chain followed by a ray on the new heading.
package platmodel

import (
	"math"

	"avoidance-core/internal/angle"
	"avoidance-core/internal/spatial"
)

// Model is a platform pose with its turn spokes. Index 0 on each side is the
// zero-turn root path. Models are values; copying one copies its spokes but
// not its cached closest-approach results.
type Model struct {
	x, y, hdg, spd         float64
	setX, setY, setH, setV bool

	spokeDegs float64
	star      []spatial.Seglr
	port      []spatial.Seglr

	caches map[string]*spokeCache
}

type spokeCache struct {
	star, port []spatial.CPA
}

// New returns a holonomic model at the given pose.
func New(x, y, hdg, spd float64) Model {
	var m Model
	m.SetPose(x, y, hdg, spd)
	return m
}

// SetPose sets all four pose fields and drops the spokes, which no longer
// match the pose.
func (m *Model) SetPose(x, y, hdg, spd float64) {
	m.SetX(x)
	m.SetY(y)
	m.SetHeading(hdg)
	m.SetSpeed(spd)
}

func (m *Model) SetX(x float64) { m.x, m.setX = x, true; m.reset() }
func (m *Model) SetY(y float64) { m.y, m.setY = y, true; m.reset() }

// SetHeading wraps into [0, 360).
func (m *Model) SetHeading(h float64) { m.hdg, m.setH = angle.Wrap360(h), true; m.reset() }

// SetSpeed clamps negative speeds to zero.
func (m *Model) SetSpeed(v float64) { m.spd, m.setV = math.Max(0, v), true }

func (m *Model) reset() {
	m.star, m.port = nil, nil
	m.caches = nil
}

// SetSpokes installs turn paths generated for the current pose.
func (m *Model) SetSpokes(spokeDegs float64, star, port []spatial.Seglr) {
	m.spokeDegs = spokeDegs
	m.star, m.port = star, port
	m.caches = nil
}

func (m Model) X() float64       { return m.x }
func (m Model) Y() float64       { return m.y }
func (m Model) Heading() float64 { return m.hdg }
func (m Model) Speed() float64   { return m.spd }

// Position is the platform location.
func (m Model) Position() spatial.Point { return spatial.Point{X: m.x, Y: m.y} }

// Valid reports whether every pose field has been set.
func (m Model) Valid() bool { return m.setX && m.setY && m.setH && m.setV }

// SpokeDegs is the heading step between spokes; 0 for a holonomic model.
func (m Model) SpokeDegs() float64 { return m.spokeDegs }

// Spokes returns the number of spokes per side, including the root.
func (m Model) Spokes() int { return len(m.star) }

// WithoutCache returns a copy that shares no cache with m.
func (m Model) WithoutCache() Model {
	m.caches = nil
	return m
}

func (m Model) spokeIndex(hdg float64, side []spatial.Seglr) int {
	if len(side) <= 1 || m.spokeDegs <= 0 {
		return 0
	}
	ix := int(angle.Diff(m.hdg, hdg)/m.spokeDegs + 0.5)
	if ix > len(side)-1 {
		ix = len(side) - 1
	}
	return ix
}

func (m Model) side(hdg float64) ([]spatial.Seglr, bool) {
	if angle.PortTurn(m.hdg, hdg) {
		return m.port, true
	}
	return m.star, false
}

// TurnSeglr is the path taken when turning onto hdg: the spoke whose turn
// amount is nearest the heading change, with its ray on hdg.
func (m Model) TurnSeglr(hdg float64) spatial.Seglr {
	side, _ := m.side(hdg)
	if len(side) == 0 {
		return spatial.NewSeglr(m.Position(), angle.Wrap360(hdg))
	}
	s := side[m.spokeIndex(hdg, side)].Clone()
	s.RayAngle = angle.Wrap360(hdg)
	return s
}

// FillCache computes, for every spoke on both sides, the closest approach of
// the spoke's segment chain to poly. Results are stored under tag.
func (m *Model) FillCache(poly spatial.Polygon, tag string) {
	if m.caches == nil {
		m.caches = make(map[string]*spokeCache)
	}
	m.caches[tag] = &spokeCache{
		star: chainCPAs(m.star, poly),
		port: chainCPAs(m.port, poly),
	}
}

// HasCache reports whether results for tag are present.
func (m Model) HasCache(tag string) bool {
	_, ok := m.caches[tag]
	return ok
}

// chainCPAs relies on spoke i extending spoke i-1 by one vertex.
func chainCPAs(spokes []spatial.Seglr, poly spatial.Polygon) []spatial.CPA {
	out := make([]spatial.CPA, len(spokes))
	for i, s := range spokes {
		if i == 0 {
			p := s.Verts[0]
			out[0] = spatial.CPA{Dist: poly.DistTo(p), Pt: p}
			continue
		}
		prev := out[i-1]
		if prev.Hit() || len(s.Verts) < 2 {
			out[i] = prev
			continue
		}
		a, b := s.Verts[len(s.Verts)-2], s.Verts[len(s.Verts)-1]
		d, p := spatial.DistSegToPoly(a, b, poly)
		if d < prev.Dist {
			stem := spokes[i-1].Length() + spatial.DistanceBetween(a, p)
			out[i] = spatial.CPA{Dist: d, Pt: p, Stem: stem}
		} else {
			out[i] = prev
		}
	}
	return out
}

// TurnCPA is the closest approach to poly of the path onto hdg. When the cache
// for tag is present only the terminal ray is computed.
func (m Model) TurnCPA(hdg float64, poly spatial.Polygon, tag string) spatial.CPA {
	c, ok := m.caches[tag]
	side, port := m.side(hdg)
	if !ok || len(side) == 0 {
		return spatial.DistSeglrToPoly(m.TurnSeglr(hdg), poly)
	}
	cached := c.star
	if port {
		cached = c.port
	}
	ix := m.spokeIndex(hdg, side)
	prefix := cached[ix]
	if prefix.Hit() {
		return prefix
	}
	s := side[ix]
	ray := spatial.PolyRayCPA(s.Last(), angle.Wrap360(hdg), poly)
	if ray.Dist < prefix.Dist {
		ray.Stem += s.Length()
		return ray
	}
	return prefix
}
