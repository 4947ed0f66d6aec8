package obship

import (
	"math"
	"math/rand"
	"testing"

	"avoidance-core/internal/angle"
	"avoidance-core/internal/ivp"
	"avoidance-core/internal/platmodel"
	"avoidance-core/internal/spatial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x0, y0, x1, y1 float64) spatial.Polygon {
	return spatial.Polygon{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func newModel(t *testing.T, poly spatial.Polygon, x, y, hdg float64) *Model {
	t.Helper()
	m := New()
	require.NoError(t, m.SetGutPoly(poly, "ob_1"))
	m.SetPlatModel(platmodel.NewDubinsGenerator().Generate(x, y, hdg, 2))
	return m
}

func TestDefaults(t *testing.T) {
	m := New()
	assert.Equal(t, 8.0, m.MinUtilCPA())
	assert.Equal(t, 16.0, m.MaxUtilCPA())
	assert.Equal(t, 10.0, m.PwtInnerDist())
	assert.Equal(t, 50.0, m.PwtOuterDist())
	assert.Equal(t, 50.0, m.CompletedDist())
	assert.Equal(t, 20.0, m.AllowableTTC())
	assert.Equal(t, 30.0, m.OBuffRDegs())
	assert.True(t, m.Stale())
	assert.False(t, m.ParamIsSet("min_util_cpa"))

	m.SetOBuffRDegs(90)
	assert.Equal(t, 45.0, m.OBuffRDegs())
	m.SetOBuffRDegs(0)
	assert.Equal(t, 1.0, m.OBuffRDegs())
}

func TestThresholdSettersPullUnsetBounds(t *testing.T) {
	m := New()
	require.NoError(t, m.SetPwtInnerDist(60))
	assert.Equal(t, 60.0, m.PwtOuterDist())
	assert.Equal(t, 60.0, m.CompletedDist())

	require.NoError(t, m.SetMaxUtilCPA(5))
	assert.Equal(t, 5.0, m.MinUtilCPA())
}

func TestThresholdSettersRejectWithoutMutation(t *testing.T) {
	m := New()
	require.NoError(t, m.SetPwtOuterDist(30))
	err := m.SetPwtInnerDist(40)
	require.EqualError(t, err, "pwt_inner_dist must be <= pwt_outer_dist")
	assert.Equal(t, 10.0, m.PwtInnerDist())
	assert.Equal(t, 30.0, m.PwtOuterDist())

	require.NoError(t, m.SetCompletedDist(35))
	assert.Error(t, m.SetPwtOuterDist(40))
	assert.Equal(t, 30.0, m.PwtOuterDist())

	assert.EqualError(t, m.SetMinUtilCPA(-1), "min_util_cpa cannot be a negative number")
	require.NoError(t, m.SetMaxUtilCPA(12))
	assert.EqualError(t, m.SetMinUtilCPA(13), "min_util_cpa must be <= max_util_cpa")
	assert.Equal(t, 8.0, m.MinUtilCPA())

	assert.Error(t, m.SetAllowableTTC(-2))
	assert.False(t, m.ParamIsSet("allowable_ttc"))
}

func TestThresholdOrderingHoldsUnderRandomSetters(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := New()
	for i := 0; i < 2000; i++ {
		v := rng.Float64()*120 - 10
		before := [5]float64{m.PwtInnerDist(), m.PwtOuterDist(), m.CompletedDist(), m.MinUtilCPA(), m.MaxUtilCPA()}
		var err error
		switch rng.Intn(5) {
		case 0:
			err = m.SetPwtInnerDist(v)
		case 1:
			err = m.SetPwtOuterDist(v)
		case 2:
			err = m.SetCompletedDist(v)
		case 3:
			err = m.SetMinUtilCPA(v)
		case 4:
			err = m.SetMaxUtilCPA(v)
		}
		after := [5]float64{m.PwtInnerDist(), m.PwtOuterDist(), m.CompletedDist(), m.MinUtilCPA(), m.MaxUtilCPA()}
		if err != nil {
			assert.Equal(t, before, after)
		}
		assert.LessOrEqual(t, m.PwtInnerDist(), m.PwtOuterDist())
		assert.LessOrEqual(t, m.PwtOuterDist(), m.CompletedDist())
		assert.LessOrEqual(t, m.MinUtilCPA(), m.MaxUtilCPA())
	}
}

func TestSetGutPolyRejectsNonConvex(t *testing.T) {
	m := New()
	require.NoError(t, m.SetGutPolySpec("pts={0,0:10,0:10,10:0,10},label=ob_1"))
	assert.Equal(t, "ob_1", m.Label())

	dart := spatial.Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 2}, {X: 5, Y: 10}}
	assert.ErrorIs(t, m.SetGutPoly(dart, "bad"), ErrNotConvex)
	assert.Equal(t, "ob_1", m.Label())
	assert.Len(t, m.GutPoly(), 4)
}

func TestRefreshDerivedGeometry(t *testing.T) {
	m := newModel(t, box(-10, 15, 10, 35), 0, 0, 0)
	assert.Error(t, m.Valid())
	require.True(t, m.EnsureFresh())
	require.NoError(t, m.Valid())

	assert.InDelta(t, 15.0, m.Range(), 1e-9)
	assert.InDelta(t, 15.0, m.RangeInHeading(), 1e-9)
	assert.InDelta(t, 0.0, m.HeadingCPA(), 1e-9)
	assert.InDelta(t, 0.0, m.CenterBearing(), 1e-9)
	assert.Equal(t, SideNone, m.PassingSide())

	mid, rim := m.BufferDists()
	assert.Equal(t, 8.0, mid)
	assert.Equal(t, 14.0, rim)
	assert.True(t, m.MidPoly().ContainsPoly(m.GutPoly()))
	assert.True(t, m.RimPoly().ContainsPoly(m.MidPoly()))
	assert.False(t, m.OwnshipInRimPoly())

	m.SetPlatModel(platmodel.NewDubinsGenerator().Generate(0, 0, 300, 2))
	assert.True(t, m.Stale())
	require.True(t, m.EnsureFresh())
	assert.Equal(t, SideStar, m.PassingSide())
	m.SetPlatModel(platmodel.NewDubinsGenerator().Generate(0, 0, 60, 2))
	m.EnsureFresh()
	assert.Equal(t, SidePort, m.PassingSide())
}

func TestEnsureFreshIsIdempotent(t *testing.T) {
	m := newModel(t, box(-10, 15, 10, 35), 0, 0, 0)
	require.True(t, m.EnsureFresh())
	ext := m.BearingExtremes()
	require.True(t, m.EnsureFresh())
	assert.Equal(t, ext, m.BearingExtremes())
}

func TestRelevanceObstacleAhead(t *testing.T) {
	m := newModel(t, box(-10, 15, 10, 35), 0, 0, 0)
	require.NoError(t, m.SetPwtOuterDist(30))
	require.True(t, m.EnsureFresh())
	assert.InDelta(t, 0.75, m.RangeRelevance(), 1e-9)
}

func TestRelevanceBearingDiscount(t *testing.T) {
	// tangents straddle north: full weight whatever the heading
	m := newModel(t, box(-10, 15, 10, 35), 0, 0, 90)
	require.NoError(t, m.SetPwtOuterDist(30))
	require.True(t, m.EnsureFresh())
	assert.InDelta(t, 0.75, m.RangeRelevance(), 1e-9)
	m.SetPlatModel(platmodel.NewDubinsGenerator().Generate(0, 0, 180, 2))
	require.True(t, m.EnsureFresh())
	assert.InDelta(t, 0.75, m.RangeRelevance(), 1e-9)

	// tangents at 36.87 and 143.13: heading 90 lies between them and is
	// still discounted by the nearer one
	m = newModel(t, box(15, -20, 35, 20), 0, 0, 90)
	require.NoError(t, m.SetPwtOuterDist(30))
	require.True(t, m.EnsureFresh())
	assert.InDelta(t, 0.75*0.6, m.RangeRelevance(), 1e-6)

	m.SetPlatModel(platmodel.NewDubinsGenerator().Generate(0, 0, 40, 2))
	require.True(t, m.EnsureFresh())
	assert.InDelta(t, 0.75*math.Cos(angle.Rad(3.13010235)), m.RangeRelevance(), 1e-6)

	m.SetPlatModel(platmodel.NewDubinsGenerator().Generate(0, 0, 270, 2))
	require.True(t, m.EnsureFresh())
	assert.Equal(t, 0.01, m.RangeRelevance())
}

func TestRelevanceMonotoneInRange(t *testing.T) {
	prev := 2.0
	for y := 0.0; y <= 70; y += 0.5 {
		m := newModel(t, box(-10, y, 10, y+20), 0, 0, 0)
		require.True(t, m.EnsureFresh())
		rel := m.RangeRelevance()
		assert.LessOrEqual(t, rel, prev, "range=%v", y)
		prev = rel
		switch {
		case y <= m.PwtInnerDist():
			assert.Equal(t, 1.0, rel, "range=%v", y)
		case y >= m.PwtOuterDist():
			assert.Equal(t, 0.0, rel, "range=%v", y)
		}
	}
}

func TestOwnshipInsideObstacle(t *testing.T) {
	m := newModel(t, box(-10, 15, 10, 35), 0, 25, 0)
	require.True(t, m.EnsureFresh())
	require.NoError(t, m.Valid())
	assert.Equal(t, 0.0, m.Range())
	assert.Equal(t, 1.0, m.RangeRelevance())
	assert.True(t, m.OwnshipInGutPoly())
	assert.True(t, m.MidPoly().ContainsPoly(m.GutPoly()))

	ext := m.BearingExtremes()
	assert.Equal(t, 360, ext.GutHits)
	assert.False(t, ext.GutOK)
}

func TestFlexDistanceDegradesNearObstacle(t *testing.T) {
	m := newModel(t, box(-10, 10, 10, 30), 0, 0, 0)
	require.True(t, m.EnsureFresh())
	mid, rim := m.BufferDists()
	assert.Equal(t, 8.0, mid)
	assert.Equal(t, 9.0, rim)
	assert.False(t, m.OwnshipInRimPoly())
}

func TestEvalHdgSpd(t *testing.T) {
	m := newModel(t, box(-10, 60, 10, 80), 0, 0, 0)
	require.True(t, m.EnsureFresh())
	assert.Equal(t, 0.0, m.EvalHdgSpd(0, 2))
	assert.Equal(t, 100.0, m.EvalHdgSpd(180, 2))
	assert.Equal(t, 100.0, m.EvalHdgSpd(90, 2))
	u := m.EvalHdgSpd(20, 2)
	assert.Greater(t, u, 0.0)
	assert.Less(t, u, 100.0)

	assert.True(t, m.RayCPA(0).Hit())
	assert.InDelta(t, 60.0, m.RayCPA(0).Stem, 1e-9)
}

func TestBearingExtremesAhead(t *testing.T) {
	m := newModel(t, box(-10, 60, 10, 80), 0, 0, 0)
	require.True(t, m.EnsureFresh())
	ext := m.BearingExtremes()
	assert.Equal(t, 360, ext.GutHits+ext.GutUnhits)
	assert.Equal(t, 360, ext.RimHits+ext.RimUnhits)
	require.True(t, ext.GutOK)
	require.True(t, ext.RimOK)
	assert.True(t, ext.Gut.Contains(0))
	assert.False(t, ext.Gut.Contains(180))
	assert.True(t, ext.Rim.Contains(180))
	assert.False(t, ext.Rim.Contains(0))
	assert.False(t, ext.Rim.Contains(ext.Gut.Min) || ext.Gut.Contains(ext.Rim.Min))
}

func TestIsObstacleAft(t *testing.T) {
	m := newModel(t, box(-10, -40, 10, -20), 0, 0, 0)
	assert.True(t, m.IsObstacleAft(20))
	m = newModel(t, box(-10, 20, 10, 40), 0, 0, 0)
	assert.False(t, m.IsObstacleAft(20))
}

func TestLongestRun(t *testing.T) {
	flags := make([]bool, 10)
	for _, i := range []int{8, 9, 0, 1, 4} {
		flags[i] = true
	}
	lo, hi := longestRun(flags)
	assert.Equal(t, 8, lo)
	assert.Equal(t, 1, hi)
}

func TestAOFInitialize(t *testing.T) {
	dom, err := ivp.ParseDomain("course,0,359,360:speed,0,5,21")
	require.NoError(t, err)

	m := newModel(t, box(-10, 60, 10, 80), 0, 0, 0)
	assert.Error(t, NewAOF(m, dom).Initialize())

	require.NoError(t, m.SetMinUtilCPA(8))
	require.NoError(t, m.SetMaxUtilCPA(16))
	require.NoError(t, m.SetAllowableTTC(20))
	require.True(t, m.EnsureFresh())
	aof := NewAOF(m, dom)
	require.NoError(t, aof.Initialize())
	assert.Equal(t, 0.0, aof.Eval([]float64{0, 2}))

	noSpeed, err := ivp.ParseDomain("course,0,359,360")
	require.NoError(t, err)
	assert.Error(t, NewAOF(m, noSpeed).Initialize())

	m.SetPlatModel(platmodel.NewDubinsGenerator().Generate(0, 70, 0, 2))
	assert.Error(t, NewAOF(m, dom).Initialize())
}
