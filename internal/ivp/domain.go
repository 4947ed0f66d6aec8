// internal/ivp/domain.go

// Package ivp holds the decision-space pieces the avoidance behavior hands to
// the helm solver: a discretized domain, boxes over it, region separation and
// a uniform-grid piecewise function builder.
package ivp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingAxis is returned when a named axis is not in the domain.
var ErrMissingAxis = errors.New("axis not in domain")

// Axis is one decision variable sampled at Points evenly spaced values from
// Low to High inclusive.
type Axis struct {
	Name   string
	Low    float64
	High   float64
	Points int
}

// Delta is the spacing between adjacent points.
func (a Axis) Delta() float64 {
	if a.Points <= 1 {
		return 0
	}
	return (a.High - a.Low) / float64(a.Points-1)
}

// Snap selects how a continuous value maps onto a point index.
type Snap int

const (
	SnapDown Snap = iota
	SnapUp
	SnapNearest
)

// snapEps absorbs floating error when a value sits on a grid point.
const snapEps = 1e-9

// Domain is an ordered set of axes.
type Domain struct {
	axes []Axis
}

// NewDomain validates and builds a domain.
func NewDomain(axes ...Axis) (Domain, error) {
	seen := make(map[string]bool)
	for _, a := range axes {
		if a.Name == "" {
			return Domain{}, errors.New("axis name is empty")
		}
		if seen[a.Name] {
			return Domain{}, fmt.Errorf("duplicate axis %q", a.Name)
		}
		seen[a.Name] = true
		if a.High < a.Low {
			return Domain{}, fmt.Errorf("axis %q: high < low", a.Name)
		}
		if a.Points < 1 {
			return Domain{}, fmt.Errorf("axis %q: needs at least one point", a.Name)
		}
	}
	return Domain{axes: append([]Axis(nil), axes...)}, nil
}

// ParseDomain reads "course,0,359,360:speed,0,5,21".
func ParseDomain(s string) (Domain, error) {
	var axes []Axis
	for _, part := range strings.Split(s, ":") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := strings.Split(part, ",")
		if len(f) != 4 {
			return Domain{}, fmt.Errorf("domain axis %q: want name,low,high,points", part)
		}
		low, err1 := strconv.ParseFloat(strings.TrimSpace(f[1]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(f[2]), 64)
		pts, err3 := strconv.Atoi(strings.TrimSpace(f[3]))
		if err := errors.Join(err1, err2, err3); err != nil {
			return Domain{}, fmt.Errorf("domain axis %q: %w", part, err)
		}
		axes = append(axes, Axis{Name: strings.TrimSpace(f[0]), Low: low, High: high, Points: pts})
	}
	return NewDomain(axes...)
}

// Size is the number of axes.
func (d Domain) Size() int { return len(d.axes) }

// Axis returns axis ix.
func (d Domain) Axis(ix int) Axis { return d.axes[ix] }

// Index returns the position of the named axis, or -1.
func (d Domain) Index(name string) int {
	for i, a := range d.axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Points is the number of points on axis ix, 0 when ix is out of range.
func (d Domain) Points(ix int) int {
	if ix < 0 || ix >= len(d.axes) {
		return 0
	}
	return d.axes[ix].Points
}

// Val is the value of point i on axis ix.
func (d Domain) Val(ix, i int) float64 {
	a := d.axes[ix]
	return a.Low + float64(i)*a.Delta()
}

// DiscreteVal maps val onto a point index of axis ix. Values at or beyond the
// ends map to the end points.
func (d Domain) DiscreteVal(ix int, val float64, snap Snap) int {
	a := d.axes[ix]
	if val <= a.Low {
		return 0
	}
	if val >= a.High {
		return a.Points - 1
	}
	delta := a.Delta()
	if delta == 0 {
		return 0
	}
	var i int
	switch snap {
	case SnapUp:
		i = int(math.Ceil((val-a.Low)/delta - snapEps))
	case SnapNearest:
		i = int(math.Ceil((val-delta/2-a.Low)/delta - snapEps))
	default:
		i = int(math.Floor((val-a.Low)/delta + snapEps))
	}
	return max(0, min(a.Points-1, i))
}

// SubDomain keeps the named axes in the given order.
func (d Domain) SubDomain(names ...string) (Domain, error) {
	axes := make([]Axis, 0, len(names))
	for _, n := range names {
		ix := d.Index(n)
		if ix < 0 {
			return Domain{}, fmt.Errorf("%s: %w", n, ErrMissingAxis)
		}
		axes = append(axes, d.axes[ix])
	}
	return NewDomain(axes...)
}

// FullBox spans the whole domain.
func (d Domain) FullBox() Box {
	b := NewBox(len(d.axes))
	for i, a := range d.axes {
		b.Hi[i] = a.Points - 1
	}
	return b
}

// Values converts a point given as indices into axis values.
func (d Domain) Values(pt []int) []float64 {
	out := make([]float64, len(pt))
	for i, v := range pt {
		out[i] = d.Val(i, v)
	}
	return out
}

func (d Domain) String() string {
	parts := make([]string, len(d.axes))
	for i, a := range d.axes {
		parts[i] = fmt.Sprintf("%s,%s,%s,%d", a.Name,
			strconv.FormatFloat(a.Low, 'f', -1, 64), strconv.FormatFloat(a.High, 'f', -1, 64), a.Points)
	}
	return strings.Join(parts, ":")
}
