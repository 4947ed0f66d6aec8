// internal/obship/extremes.go

package obship

import (
	"avoidance-core/internal/angle"
	"avoidance-core/internal/spatial"
)

// sweepHeadings is the number of one-degree headings swept for bearing extremes.
const sweepHeadings = 360

// Extremes summarizes a sweep of every heading along the modeled turn paths.
// The gut bracket holds the headings whose path touches the obstacle; the rim
// bracket holds the headings whose path stays clear of the rim outline. A
// bracket is only reported when the sweep has both hits and misses.
type Extremes struct {
	GutHits, GutUnhits int
	RimHits, RimUnhits int

	Gut   angle.Interval
	GutOK bool
	Rim   angle.Interval
	RimOK bool

	// stem distances along the turn path at the bracket ends
	GutStemMin, GutStemMax float64
	RimStemMin, RimStemMax float64
}

// BearingExtremes sweeps headings against the gut and rim outlines. The
// result is kept until the model next goes stale.
func (m *Model) BearingExtremes() Extremes {
	m.fresh()
	if m.ext != nil {
		return *m.ext
	}
	var ext Extremes
	if !m.expandOK {
		m.ext = &ext
		return ext
	}

	m.plat.FillCache(m.d.rim, rimTag)
	var rimCPA, gutCPA [sweepHeadings]spatial.CPA
	var rimClear, gutHit [sweepHeadings]bool
	for h := 0; h < sweepHeadings; h++ {
		rimCPA[h] = m.plat.TurnCPA(float64(h), m.d.rim, rimTag)
		rimClear[h] = !rimCPA[h].Hit()
		if rimClear[h] {
			ext.RimUnhits++
		} else {
			ext.RimHits++
		}
	}
	if !m.plat.HasCache(gutTag) {
		m.plat.FillCache(m.gut, gutTag)
	}
	for h := 0; h < sweepHeadings; h++ {
		gutCPA[h] = m.plat.TurnCPA(float64(h), m.gut, gutTag)
		gutHit[h] = gutCPA[h].Hit()
		if gutHit[h] {
			ext.GutHits++
		} else {
			ext.GutUnhits++
		}
	}

	if ext.GutHits > 0 && ext.GutUnhits > 0 {
		lo, hi := longestRun(gutHit[:])
		ext.Gut, ext.GutOK = angle.NewInterval(float64(lo), float64(hi)), true
		ext.GutStemMin, ext.GutStemMax = gutCPA[lo].Stem, gutCPA[hi].Stem
	}
	if ext.RimHits > 0 && ext.RimUnhits > 0 {
		lo, hi := longestRun(rimClear[:])
		ext.Rim, ext.RimOK = angle.NewInterval(float64(lo), float64(hi)), true
		ext.RimStemMin, ext.RimStemMax = rimCPA[lo].Stem, rimCPA[hi].Stem
	}
	m.ext = &ext
	return ext
}

// longestRun finds the longest circular run of true values. The slice must
// hold at least one true and one false.
func longestRun(flags []bool) (int, int) {
	n := len(flags)
	start := 0
	for flags[start] {
		start++
	}
	bestLo, bestLen := 0, 0
	runLo, runLen := 0, 0
	for k := 1; k <= n; k++ {
		i := (start + k) % n
		if flags[i] {
			if runLen == 0 {
				runLo = i
			}
			runLen++
			if runLen > bestLen {
				bestLo, bestLen = runLo, runLen
			}
		} else {
			runLen = 0
		}
	}
	return bestLo, (bestLo + bestLen - 1) % n
}
