// internal/refinery/refinery.go

// Package refinery turns an obstacle model snapshot into plateau and basin
// hint boxes over the course/speed decision domain. Plateaus mark headings
// that keep clear of the obstacle's rim; basins mark headings that hit the
// obstacle or violate a passing-side lock. The two sets never overlap.
package refinery

import (
	"log/slog"

	"avoidance-core/internal/angle"
	"avoidance-core/internal/ivp"
	"avoidance-core/internal/obship"
)

const (
	plateauValue  = 4
	basinValue    = -1
	sideLockValue = -3
)

// Refinery is rebuilt or reset for every decision cycle.
type Refinery struct {
	domain ivp.Domain
	crsIx  int
	spdIx  int
	inert  bool
	logger *slog.Logger

	sideLock obship.Side
	plateaus []ivp.Box
	basins   []ivp.Box
}

// New binds a refinery to a decision domain. A domain without course and
// speed axes leaves the refinery inert; that is logged here, once.
func New(domain ivp.Domain, logger *slog.Logger) *Refinery {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refinery{
		domain:   domain,
		crsIx:    domain.Index("course"),
		spdIx:    domain.Index("speed"),
		logger:   logger,
		sideLock: obship.SideNone,
	}
	if r.crsIx < 0 || r.spdIx < 0 || domain.Points(r.crsIx) == 0 || domain.Points(r.spdIx) == 0 {
		r.inert = true
		logger.Warn("refinery inert: domain lacks course or speed", "domain", domain.String())
	}
	return r
}

// Inert reports whether the domain could not support refinement.
func (r *Refinery) Inert() bool { return r.inert }

// SetSideLock sets the side ownship must pass on. SideNone clears it.
func (r *Refinery) SetSideLock(side obship.Side) { r.sideLock = side }

// Plateaus returns the positive-valued hint boxes from the last refinement.
func (r *Refinery) Plateaus() []ivp.Box { return r.plateaus }

// Basins returns the negative-valued hint boxes from the last refinement.
func (r *Refinery) Basins() []ivp.Box { return r.basins }

// SetRefineRegions recomputes plateaus and basins for the model.
func (r *Refinery) SetRefineRegions(m *obship.Model) {
	r.plateaus, r.basins = nil, nil
	if r.inert || m == nil || !m.EnsureFresh() {
		return
	}

	var boxes []ivp.Box
	ext := m.BearingExtremes()
	if ext.RimOK {
		boxes = append(boxes, r.courseBoxes(ext.Rim, true, plateauValue)...)
	}
	if ext.GutOK {
		boxes = append(boxes, r.courseBoxes(ext.Gut, false, basinValue)...)
	}
	boxes = append(boxes, r.sideLockBoxes(m.Heading())...)

	for _, b := range ivp.MakeRegionsApart(boxes) {
		if b.Plat < 0 {
			r.basins = append(r.basins, b)
		} else {
			r.plateaus = append(r.plateaus, b)
		}
	}
}

// sideLockBoxes bans the headings that would pass on the wrong side.
func (r *Refinery) sideLockBoxes(osh float64) []ivp.Box {
	var iv angle.Interval
	switch r.sideLock {
	case obship.SideStar:
		iv = angle.NewInterval(osh+165, osh+350)
	case obship.SidePort:
		iv = angle.NewInterval(osh+10, osh+195)
	default:
		return nil
	}
	return r.courseBoxes(iv, false, sideLockValue)
}

// courseBoxes spans iv on the course axis and every point of the other axes.
// Inward snapping moves the ends onto the nearest courses inside the arc and
// drops arcs holding no course; otherwise each end snaps to the nearest course,
// wrapping through north.
func (r *Refinery) courseBoxes(iv angle.Interval, inward bool, plat float64) []ivp.Box {
	var snapped angle.Interval
	if inward {
		snapped = angle.Interval{Min: r.HdgSnappedHigh(iv.Min), Max: r.HdgSnappedLow(iv.Max)}
		if !iv.Contains(snapped.Min) || snapped.Width() > iv.Width()+1e-9 {
			return nil
		}
	} else {
		snapped = angle.Interval{Min: r.HdgSnappedProx(iv.Min), Max: r.HdgSnappedProx(iv.Max)}
		if snapped.Min == snapped.Max && iv.Width() > 180 {
			snapped = angle.Interval{Min: 0, Max: r.domain.Axis(r.crsIx).High}
		}
	}

	var out []ivp.Box
	for _, rg := range snapped.Split() {
		lo := r.domain.DiscreteVal(r.crsIx, rg.Lo, ivp.SnapNearest)
		hi := r.domain.DiscreteVal(r.crsIx, rg.Hi, ivp.SnapNearest)
		if lo > hi {
			continue
		}
		b := r.domain.FullBox()
		b.Lo[r.crsIx], b.Hi[r.crsIx] = lo, hi
		b.Plat = plat
		out = append(out, b)
	}
	return out
}

// HdgSnappedLow rounds hdg down onto the course axis.
func (r *Refinery) HdgSnappedLow(hdg float64) float64 {
	hdg = angle.Wrap360(hdg)
	return r.domain.Val(r.crsIx, r.domain.DiscreteVal(r.crsIx, hdg, ivp.SnapDown))
}

// HdgSnappedHigh rounds hdg up onto the course axis; headings beyond the last
// course wrap to 0.
func (r *Refinery) HdgSnappedHigh(hdg float64) float64 {
	hdg = angle.Wrap360(hdg)
	if hdg > r.domain.Axis(r.crsIx).High {
		return 0
	}
	return r.domain.Val(r.crsIx, r.domain.DiscreteVal(r.crsIx, hdg, ivp.SnapUp))
}

// HdgSnappedProx rounds hdg to the nearest course, wrapping through 0.
func (r *Refinery) HdgSnappedProx(hdg float64) float64 {
	hdg = angle.Wrap360(hdg)
	axis := r.domain.Axis(r.crsIx)
	if hdg > axis.High {
		if hdg-axis.High > axis.Delta()/2 {
			return 0
		}
		return axis.High
	}
	return r.domain.Val(r.crsIx, r.domain.DiscreteVal(r.crsIx, hdg, ivp.SnapNearest))
}
