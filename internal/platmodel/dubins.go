// internal/platmodel/dubins.go

package platmodel

import (
	"avoidance-core/internal/angle"
	"avoidance-core/internal/spatial"
)

// Generator builds a platform model for a pose.
type Generator interface {
	Generate(x, y, hdg, spd float64) Model
}

// DubinsGenerator samples constant-radius turns to each side every SpokeDegs
// degrees, up to but not including a full reversal.
type DubinsGenerator struct {
	Radius    float64
	SpokeDegs float64
}

// NewDubinsGenerator returns the default 30 unit radius, 10 degree generator.
func NewDubinsGenerator() DubinsGenerator {
	return DubinsGenerator{Radius: 30, SpokeDegs: 10}
}

// Generate returns a model with spokes. A non-positive radius or spoke step
// yields a holonomic model whose only path is the root point.
func (g DubinsGenerator) Generate(x, y, hdg, spd float64) Model {
	m := New(x, y, hdg, spd)
	root := spatial.NewSeglr(m.Position(), m.Heading())
	if g.Radius <= 0 || g.SpokeDegs <= 0 {
		m.SetSpokes(0, []spatial.Seglr{root}, []spatial.Seglr{root.Clone()})
		return m
	}
	h := m.Heading()
	scx, scy := angle.Project(x, y, h+90, g.Radius)
	pcx, pcy := angle.Project(x, y, h-90, g.Radius)

	star := []spatial.Seglr{root}
	port := []spatial.Seglr{root.Clone()}
	for degs := g.SpokeDegs; degs < 180; degs += g.SpokeDegs {
		sx, sy := angle.Project(scx, scy, angle.Wrap360(h-90+degs), g.Radius)
		s := star[len(star)-1].Clone()
		s.Add(spatial.Point{X: sx, Y: sy})
		star = append(star, s)

		px, py := angle.Project(pcx, pcy, angle.Wrap360(h+90-degs), g.Radius)
		p := port[len(port)-1].Clone()
		p.Add(spatial.Point{X: px, Y: py})
		port = append(port, p)
	}
	m.SetSpokes(g.SpokeDegs, star, port)
	return m
}
