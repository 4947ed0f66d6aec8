// internal/angle/interval.go

package angle

import "fmt"

const eps = 1e-9

// Interval is the clockwise arc from Min to Max. When Min > Max the arc
// crosses north. Min == Max is a single heading.
type Interval struct {
	Min, Max float64
}

// Range is a non-wrapping span with Lo <= Hi.
type Range struct {
	Lo, Hi float64
}

// NewInterval wraps both ends into [0, 360).
func NewInterval(min, max float64) Interval {
	return Interval{Min: Wrap360(min), Max: Wrap360(max)}
}

// Width is the clockwise extent of the arc.
func (iv Interval) Width() float64 {
	return Wrap360(iv.Max - iv.Min)
}

// Wraps reports whether the arc crosses north.
func (iv Interval) Wraps() bool {
	return iv.Min > iv.Max
}

// Contains reports whether a lies on the arc, ends included.
func (iv Interval) Contains(a float64) bool {
	return Wrap360(a-iv.Min) <= iv.Width()+eps
}

// Split breaks the arc into non-wrapping ranges. A wrapping arc yields
// [Min,360) as {Min,360} followed by {0,Max}.
func (iv Interval) Split() []Range {
	if !iv.Wraps() {
		return []Range{{Lo: iv.Min, Hi: iv.Max}}
	}
	return []Range{{Lo: iv.Min, Hi: 360}, {Lo: 0, Hi: iv.Max}}
}

// NearestEnd returns the smaller angular distance from a to either end of the
// arc. A heading on the arc is still measured to its ends.
func (iv Interval) NearestEnd(a float64) float64 {
	return min(Diff(a, iv.Min), Diff(a, iv.Max))
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.1f,%.1f]", iv.Min, iv.Max)
}
