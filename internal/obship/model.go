// internal/obship/model.go

// Package obship relates one convex obstacle to ownship: range, bearing,
// buffered outlines, passing side, turn-path closest approach, relevance and
// the utility of candidate headings.
//
// Inputs are set through setters that mark the model stale. Derived values
// are recomputed only by EnsureFresh or Refresh; reading them while stale is
// a programming error and panics under the avoiddebug build tag.
package obship

import (
	"errors"
	"fmt"
	"math"

	"avoidance-core/internal/angle"
	"avoidance-core/internal/platmodel"
	"avoidance-core/internal/spatial"
)

// Side is the side ownship is predicted to pass the obstacle on, or a side
// locked for passing.
type Side string

const (
	SidePort Side = "port"
	SideStar Side = "star"
	SideNone Side = "n/a"
)

// Opposite returns the other side; SideNone stays SideNone.
func (s Side) Opposite() Side {
	switch s {
	case SidePort:
		return SideStar
	case SideStar:
		return SidePort
	}
	return SideNone
}

// ErrNotConvex is returned for obstacle outlines that are not convex.
var ErrNotConvex = errors.New("obstacle is not convex")

const (
	gutTag = "gut"
	rimTag = "rim"

	// vertex proximity used when buffering the obstacle
	buffProximity = 1.0
)

// Model is the ship-obstacle relational model. It is not safe for concurrent use.
type Model struct {
	plat  platmodel.Model
	gut   spatial.Polygon
	label string

	minUtil, maxUtil       float64
	minUtilCPA, maxUtilCPA float64
	pwtInner, pwtOuter     float64
	completed              float64
	allowableTTC           float64
	rdegs                  float64

	set map[string]bool

	stale        bool
	expandOK     bool
	failedExpand string
	d            derived
	ext          *Extremes
}

type derived struct {
	mid, rim      spatial.Polygon
	rng, rngInOsh float64
	flexMin       float64
	flexMax       float64
	center        spatial.Point
	centerBng     float64
	relBng        float64
	side          Side
	cpaInOsh      float64
}

// New returns a model with default thresholds: utility 0..100 between CPA 8
// and 16, relevance between 10 and 50, complete beyond 50, 20s allowable ttc
// and 30 degree corner rounding.
func New() *Model {
	return &Model{
		minUtil:      0,
		maxUtil:      100,
		minUtilCPA:   8,
		maxUtilCPA:   16,
		pwtInner:     10,
		pwtOuter:     50,
		completed:    50,
		allowableTTC: 20,
		rdegs:        30,
		set:          make(map[string]bool),
		stale:        true,
		d:            derived{rng: -1, rngInOsh: -1, centerBng: -1, side: SideNone},
	}
}

func (m *Model) markStale() {
	m.stale = true
	m.ext = nil
}

func (m *Model) fresh() {
	if checkFreshness && m.stale {
		panic("obship: derived geometry read while stale")
	}
}

// Stale reports whether derived values need a refresh.
func (m *Model) Stale() bool { return m.stale }

// SetPose updates ownship pose, keeping any turn spokes out of date until a
// new platform model is supplied.
func (m *Model) SetPose(x, y, hdg, spd float64) {
	m.plat.SetPose(x, y, hdg, spd)
	m.markStale()
}

// SetPlatModel installs a platform model. The model is copied; its caches are not.
func (m *Model) SetPlatModel(pm platmodel.Model) {
	m.plat = pm.WithoutCache()
	m.markStale()
}

// SetGutPoly installs the obstacle outline. Non-convex outlines are rejected
// and leave the model unchanged.
func (m *Model) SetGutPoly(poly spatial.Polygon, label string) error {
	if !poly.IsConvex() {
		return ErrNotConvex
	}
	m.gut = poly.Clone()
	m.label = label
	m.set["gut_poly"] = true
	m.failedExpand = ""
	m.markStale()
	return nil
}

// SetGutPolySpec parses a polygon spec and installs it.
func (m *Model) SetGutPolySpec(spec string) error {
	poly, label, _, err := spatial.ParsePolygon(spec)
	if err != nil {
		return err
	}
	return m.SetGutPoly(poly, label)
}

// SetPwtInnerDist sets the range at or inside which relevance is 1. A larger
// outer or completed distance that was never set explicitly is pulled up.
func (m *Model) SetPwtInnerDist(v float64) error {
	if v < 0 {
		return errors.New("pwt_inner_dist must be a positive number")
	}
	outer, completed := m.pwtOuter, m.completed
	if outer < v {
		if m.set["pwt_outer_dist"] {
			return errors.New("pwt_inner_dist must be <= pwt_outer_dist")
		}
		outer = v
	}
	if completed < outer {
		if m.set["completed_dist"] {
			return errors.New("pwt_inner_dist must be <= completed_dist")
		}
		completed = outer
	}
	m.pwtInner, m.pwtOuter, m.completed = v, outer, completed
	m.set["pwt_inner_dist"] = true
	return nil
}

// SetPwtOuterDist sets the range at or beyond which relevance is 0.
func (m *Model) SetPwtOuterDist(v float64) error {
	if v < 0 {
		return errors.New("pwt_outer_dist must be a positive number")
	}
	inner, completed := m.pwtInner, m.completed
	if inner > v {
		if m.set["pwt_inner_dist"] {
			return errors.New("pwt_inner_dist must be <= pwt_outer_dist")
		}
		inner = v
	}
	if completed < v {
		if m.set["completed_dist"] {
			return errors.New("pwt_outer_dist must be <= completed_dist")
		}
		completed = v
	}
	m.pwtInner, m.pwtOuter, m.completed = inner, v, completed
	m.set["pwt_outer_dist"] = true
	return nil
}

// SetCompletedDist sets the range beyond which the encounter is resolved.
func (m *Model) SetCompletedDist(v float64) error {
	if v < 0 {
		return errors.New("completed_dist must be a positive number")
	}
	inner, outer := m.pwtInner, m.pwtOuter
	if outer > v {
		if m.set["pwt_outer_dist"] {
			return errors.New("pwt_outer_dist must be <= completed_dist")
		}
		outer = v
	}
	if inner > outer {
		if m.set["pwt_inner_dist"] {
			return errors.New("pwt_inner_dist must be <= completed_dist")
		}
		inner = outer
	}
	m.pwtInner, m.pwtOuter, m.completed = inner, outer, v
	m.set["completed_dist"] = true
	return nil
}

// SetMinUtilCPA sets the closest approach at or below which utility is minimal.
func (m *Model) SetMinUtilCPA(v float64) error {
	if v < 0 {
		return errors.New("min_util_cpa cannot be a negative number")
	}
	hi := m.maxUtilCPA
	if hi < v {
		if m.set["max_util_cpa"] {
			return errors.New("min_util_cpa must be <= max_util_cpa")
		}
		hi = v
	}
	m.minUtilCPA, m.maxUtilCPA = v, hi
	m.set["min_util_cpa"] = true
	m.markStale()
	return nil
}

// SetMaxUtilCPA sets the closest approach at or above which utility is maximal.
func (m *Model) SetMaxUtilCPA(v float64) error {
	if v < 0 {
		return errors.New("max_util_cpa cannot be a negative number")
	}
	lo := m.minUtilCPA
	if lo > v {
		if m.set["min_util_cpa"] {
			return errors.New("min_util_cpa must be <= max_util_cpa")
		}
		lo = v
	}
	m.minUtilCPA, m.maxUtilCPA = lo, v
	m.set["max_util_cpa"] = true
	m.markStale()
	return nil
}

// SetAllowableTTC sets the allowable time to collision in seconds.
func (m *Model) SetAllowableTTC(v float64) error {
	if v < 0 {
		return errors.New("allowable_ttc cannot be a negative number")
	}
	m.allowableTTC = v
	m.set["allowable_ttc"] = true
	return nil
}

// SetUtilRange sets the utility bounds.
func (m *Model) SetUtilRange(lo, hi float64) error {
	if lo > hi {
		return errors.New("min_util must be <= max_util")
	}
	m.minUtil, m.maxUtil = lo, hi
	return nil
}

// SetOBuffRDegs sets the corner rounding resolution, clamped to [1, 45].
func (m *Model) SetOBuffRDegs(v float64) {
	m.rdegs = math.Max(1, math.Min(45, v))
	m.markStale()
}

// ParamIsSet reports whether a parameter was set explicitly. The pose fields
// osx, osy, osh and osv count as set once the platform model is valid.
func (m *Model) ParamIsSet(param string) bool {
	switch param {
	case "osx", "osy", "osh", "osv":
		return m.plat.Valid()
	}
	return m.set[param]
}

func (m *Model) X() float64 { return m.plat.X() }
func (m *Model) Y() float64 { return m.plat.Y() }
func (m *Model) Heading() float64 { return m.plat.Heading() }
func (m *Model) Speed() float64 { return m.plat.Speed() }
func (m *Model) PlatModel() platmodel.Model { return m.plat.WithoutCache() }
func (m *Model) GutPoly() spatial.Polygon { return m.gut.Clone() }
func (m *Model) Label() string { return m.label }
func (m *Model) MinUtilCPA() float64 { return m.minUtilCPA }
func (m *Model) MaxUtilCPA() float64 { return m.maxUtilCPA }
func (m *Model) PwtInnerDist() float64 { return m.pwtInner }
func (m *Model) PwtOuterDist() float64 { return m.pwtOuter }
func (m *Model) CompletedDist() float64 { return m.completed }
func (m *Model) AllowableTTC() float64 { return m.allowableTTC }
func (m *Model) OBuffRDegs() float64 { return m.rdegs }
func (m *Model) UtilRange() (float64, float64) { return m.minUtil, m.maxUtil }

// FailedExpand returns the last buffering diagnostic, clearing it when asked.
func (m *Model) FailedExpand(clear bool) string {
	s := m.failedExpand
	if clear {
		m.failedExpand = ""
	}
	return s
}

// EnsureFresh recomputes derived values if any input changed since the last
// refresh. It reports whether the derived geometry is usable.
func (m *Model) EnsureFresh() bool {
	if !m.stale {
		return m.expandOK
	}
	return m.Refresh()
}

// Refresh recomputes derived values unconditionally.
func (m *Model) Refresh() bool {
	m.stale = false
	m.ext = nil
	m.expandOK = false
	m.d = derived{rng: -1, rngInOsh: -1, centerBng: -1, side: SideNone}
	if len(m.gut) == 0 || !m.plat.Valid() {
		return false
	}

	os := m.plat.Position()
	if m.gut.Contains(os) {
		m.d.rng, m.d.rngInOsh = 0, 0
	} else {
		m.d.rng = m.gut.DistTo(os)
		m.d.rngInOsh = m.gut.DistToInDir(os, m.plat.Heading())
	}

	m.d.flexMin = flexDist(m.minUtilCPA, m.d.rng)
	m.d.flexMax = flexDist(m.maxUtilCPA, m.d.rng)

	exp := spatial.NewExpander(m.rdegs)
	exp.VertexProximity = buffProximity
	mid, err := exp.Buffer(m.gut, m.d.flexMin)
	if err != nil {
		m.failedExpand = fmt.Sprintf("Bad Expand: %s buff=%s: %v", m.gutSpec(), spatial.FormatNum(m.d.flexMin), err)
		return false
	}
	rim, err := exp.Buffer(m.gut, m.d.flexMax)
	if err != nil {
		m.failedExpand = fmt.Sprintf("Bad Expand: %s buff=%s: %v", m.gutSpec(), spatial.FormatNum(m.d.flexMax), err)
		return false
	}
	if !mid.ContainsPoly(m.gut) || !rim.ContainsPoly(m.gut) {
		m.failedExpand = "Bad expand: buffered outline does not contain " + m.gutSpec()
		return false
	}
	m.d.mid, m.d.rim = mid, rim

	m.d.center = m.gut.Center()
	m.d.centerBng = angle.RelAng(os.X, os.Y, m.d.center.X, m.d.center.Y)
	m.d.relBng = angle.RelBearing(os.X, os.Y, m.plat.Heading(), m.d.center.X, m.d.center.Y)
	switch {
	case m.d.relBng > 0 && m.d.relBng < 180:
		m.d.side = SideStar
	case m.d.relBng > 180:
		m.d.side = SidePort
	default:
		m.d.side = SideNone
	}
	m.d.cpaInOsh = spatial.PolyRayCPA(os, m.plat.Heading(), m.gut).Dist

	m.plat.FillCache(m.gut, gutTag)
	m.expandOK = true
	return true
}

// flexDist degrades a buffer distance when ownship is already close, so the
// buffered outline never swallows ownship.
func flexDist(bound, rng float64) float64 {
	if rng < bound+1 {
		return math.Max(0, rng-1)
	}
	return bound
}

func (m *Model) gutSpec() string {
	return spatial.FormatPolygon(m.gut, m.label)
}

// Range is the distance from ownship to the obstacle, 0 when inside.
func (m *Model) Range() float64 { m.fresh(); return m.d.rng }

// RangeInHeading is the distance to the obstacle along the current heading,
// 0 when inside and -1 when the heading misses it.
func (m *Model) RangeInHeading() float64 { m.fresh(); return m.d.rngInOsh }

// MidPoly is the obstacle buffered at the (possibly degraded) min utility CPA.
func (m *Model) MidPoly() spatial.Polygon { m.fresh(); return m.d.mid.Clone() }

// RimPoly is the obstacle buffered at the (possibly degraded) max utility CPA.
func (m *Model) RimPoly() spatial.Polygon { m.fresh(); return m.d.rim.Clone() }

// BufferDists returns the buffer distances used for the mid and rim outlines.
func (m *Model) BufferDists() (float64, float64) { m.fresh(); return m.d.flexMin, m.d.flexMax }

// Center is the center of the obstacle's bounding box.
func (m *Model) Center() spatial.Point { m.fresh(); return m.d.center }

// CenterBearing is the absolute bearing from ownship to the obstacle center.
func (m *Model) CenterBearing() float64 { m.fresh(); return m.d.centerBng }

// RelBearing is the obstacle center bearing relative to ownship heading.
func (m *Model) RelBearing() float64 { m.fresh(); return m.d.relBng }

// PassingSide is the side the obstacle lies on relative to ownship heading.
func (m *Model) PassingSide() Side { m.fresh(); return m.d.side }

// HeadingCPA is the closest approach of the current heading ray to the obstacle.
func (m *Model) HeadingCPA() float64 { m.fresh(); return m.d.cpaInOsh }

func (m *Model) OwnshipInGutPoly() bool { return m.gut.Contains(m.plat.Position()) }

func (m *Model) OwnshipInMidPoly() bool { m.fresh(); return m.d.mid.Contains(m.plat.Position()) }

func (m *Model) OwnshipInRimPoly() bool { m.fresh(); return m.d.rim.Contains(m.plat.Position()) }

// Valid reports every reason the model cannot be used this cycle.
func (m *Model) Valid() error {
	var errs []error
	if m.pwtOuter < m.pwtInner {
		errs = append(errs, errors.New("pwt_outer_dist < pwt_inner_dist"))
	}
	if m.completed < m.pwtOuter {
		errs = append(errs, errors.New("completed_dist < pwt_outer_dist"))
	}
	if m.maxUtilCPA < m.minUtilCPA {
		errs = append(errs, errors.New("max_util_cpa < min_util_cpa"))
	}
	if !m.gut.IsConvex() {
		errs = append(errs, errors.New("obstacle polygon unset or not convex"))
	}
	if !m.plat.Valid() {
		errs = append(errs, errors.New("ownship pose incomplete"))
	}
	if m.stale {
		errs = append(errs, errors.New("derived geometry is stale"))
	} else if !m.expandOK {
		errs = append(errs, errors.New("buffered outlines unavailable"))
	} else if !m.d.mid.IsConvex() || !m.d.rim.IsConvex() {
		errs = append(errs, errors.New("buffered outline not convex"))
	}
	return errors.Join(errs...)
}

// RangeRelevance maps range onto [0,1]: 0 at or beyond the outer distance, 1
// at or inside the inner distance and linear between. The result is then
// discounted by the cosine of the smaller angle between the heading and either
// tangent bearing to the obstacle. A tangent bracket crossing north keeps full
// weight. A positive value discounted to zero is floored at 0.01.
func (m *Model) RangeRelevance() float64 {
	m.fresh()
	rng := m.d.rng
	if rng < 0 || rng >= m.pwtOuter {
		return 0
	}
	pct := 1.0
	if rng > m.pwtInner {
		pct = (m.pwtOuter - rng) / (m.pwtOuter - m.pwtInner)
	}

	iv, ok := spatial.BearingMinMaxToPoly(m.plat.Position(), m.gut)
	if !ok || iv.Wraps() {
		return pct
	}
	theta := iv.NearestEnd(m.plat.Heading())
	factor := 0.0
	if theta < 90 {
		factor = math.Cos(angle.Rad(theta))
	}
	pct2 := pct * factor
	if pct > 0 && pct2 == 0 {
		return 0.01
	}
	return pct2
}

// IsObstacleAft reports whether the whole obstacle lies more than xbng
// degrees abaft ownship's beam.
func (m *Model) IsObstacleAft(xbng float64) bool {
	return spatial.PolyAft(m.plat.Position(), m.plat.Heading(), m.gut, xbng)
}

// RayCPA is the closest approach of a straight run on hdg from ownship.
func (m *Model) RayCPA(hdg float64) spatial.CPA {
	return spatial.PolyRayCPA(m.plat.Position(), hdg, m.gut)
}

// TurnCPA is the closest approach when turning onto hdg along the modeled
// turn path.
func (m *Model) TurnCPA(hdg float64) spatial.CPA {
	return m.plat.TurnCPA(hdg, m.gut, gutTag)
}

// EvalHdgSpd maps the turn-path closest approach for hdg linearly from
// [min_util_cpa, max_util_cpa] onto the utility range. Speed does not enter
// the utility.
func (m *Model) EvalHdgSpd(hdg, _ float64) float64 {
	cpa := m.TurnCPA(hdg).Dist
	if cpa >= m.maxUtilCPA {
		return m.maxUtil
	}
	if cpa <= m.minUtilCPA {
		return m.minUtil
	}
	pct := (cpa - m.minUtilCPA) / (m.maxUtilCPA - m.minUtilCPA)
	return m.minUtil + pct*(m.maxUtil-m.minUtil)
}
