package behavior

import (
	"strings"
	"testing"

	"avoidance-core/internal/ivp"
	"avoidance-core/internal/obship"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aheadPoly = "pts={-10,60:10,60:10,80:-10,80},label=ob_1"

func baseParams(poly string) []Param {
	return []Param{
		{Name: "poly", Value: poly},
		{Name: "id", Value: "ob_1"},
		{Name: "min_util_cpa_dist", Value: "8"},
		{Name: "max_util_cpa_dist", Value: "16"},
		{Name: "allowable_ttc", Value: "20"},
		{Name: "pwt_inner_dist", Value: "10"},
		{Name: "pwt_outer_dist", Value: "50"},
		{Name: "completed_dist", Value: "75"},
	}
}

func newAvoid(t *testing.T, extra ...Param) (*AvoidObstacle, *InfoBuffer) {
	t.Helper()
	dom, err := ivp.ParseDomain("course,0,359,360:speed,0,5,21")
	require.NoError(t, err)
	info := NewInfoBuffer()
	b := NewAvoidObstacle(dom, info, nil)
	params := append(baseParams(aheadPoly), extra...)
	require.NoError(t, Configure(b, params))
	return b, info
}

func setNav(info *InfoBuffer, x, y, hdg, spd float64) {
	info.SetNum("NAV_X", x)
	info.SetNum("NAV_Y", y)
	info.SetNum("NAV_HEADING", hdg)
	info.SetNum("NAV_SPEED", spd)
}

func postsOf(posts []Post, v string) []Post {
	var out []Post
	for _, p := range posts {
		if p.Var == v {
			out = append(out, p)
		}
	}
	return out
}

func TestConfigStatusAndAlertRequest(t *testing.T) {
	b, _ := newAvoid(t, Param{Name: "templating", Value: "spawn"}, Param{Name: "updates", Value: "OBSTACLE_UPDATE"})
	settings := postsOf(b.Drain(), "BHV_SETTINGS")
	require.Len(t, settings, 1)
	assert.Equal(t, "type=BHV_AvoidObstacleV24,name=avdobs,allowable_ttc=20.00,min_util_cpa=8.00,"+
		"max_util_cpa=16.00,pwt_outer_dist=50.00,pwt_inner_dist=10.00,completed_dist=75.00", settings[0].Value)
	assert.Equal(t, KeyRepeatable, settings[0].Key)

	b.OnHelmStart()
	req := postsOf(b.Drain(), "OBM_ALERT_REQUEST")
	require.Len(t, req, 1)
	assert.Equal(t, "name=avdobs,update_var=OBSTACLE_UPDATE,alert_range=50", req[0].Value)
}

func TestAlertRequestOnlyForSpawnTemplates(t *testing.T) {
	b, _ := newAvoid(t, Param{Name: "updates", Value: "OBSTACLE_UPDATE"})
	b.Drain()
	b.OnHelmStart()
	assert.Empty(t, postsOf(b.Drain(), "OBM_ALERT_REQUEST"))
}

func TestSetParamRejections(t *testing.T) {
	b, _ := newAvoid(t)
	tests := []struct {
		param, val string
	}{
		{"id", "ob_2"},
		{"pwt_inner_dist", "-1"},
		{"pwt_inner_dist", "abc"},
		{"pwt_inner_dist", "60"},
		{"pwt_grade", "cubic"},
		{"poly", "pts={0,0:10,0:5,2:5,10}"},
		{"use_refinery", "maybe"},
		{"rng_flag", "<abc NEAR=true"},
		{"aft_exclusion_degs", "120"},
		{"visual_hints", "edge_size=big"},
		{"no_such_param", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.param+"="+tt.val, func(t *testing.T) {
			assert.Error(t, b.SetParam(tt.param, tt.val))
		})
	}
	assert.Equal(t, "ob_1", b.ObstacleID())
	assert.Equal(t, 10.0, b.Model().PwtInnerDist())
	assert.Equal(t, "ob_1", b.Model().Label())
	assert.NoError(t, b.SetParam("id", "ob_1"))
}

func TestRelevanceAndFunction(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "pwt_outer_dist", Value: "30"})
	require.NoError(t, b.SetParam("poly", "pts={-10,15:10,15:10,35:-10,35},label=ob_1"))
	setNav(info, 0, 0, 0, 2)
	d := NewDriver(b)

	res := d.Step(true)
	assert.Equal(t, StateRunning, res.State)
	assert.InDelta(t, 0.75, b.Relevance(), 1e-9)
	require.NotNil(t, res.Function)
	assert.InDelta(t, 75.0, res.Function.PWT, 1e-9)
	assert.Equal(t, obship.SideNone, b.SideLock())

	views := postsOf(res.Posts, "VIEW_POLYGON")
	require.Len(t, views, 3)
	assert.Contains(t, views[0].Value, "label=ob_1")
	assert.Contains(t, views[0].Value, "fill_color=gray60")
	assert.Contains(t, views[0].Value, "edge_color=white")
	assert.Contains(t, views[1].Value, "label=ob_1_mid_poly")
	assert.Contains(t, views[1].Value, "fill_color=gray70")
	assert.Contains(t, views[2].Value, "fill_transparency=0.1")
	assert.Equal(t, "avdobsVIEW_POLYGONgut", views[0].Key)
}

func TestPwtGrade(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "pwt_outer_dist", Value: "30"}, Param{Name: "pwt_grade", Value: "quadratic"})
	require.NoError(t, b.SetParam("poly", "pts={-10,15:10,15:10,35:-10,35},label=ob_1"))
	setNav(info, 0, 0, 0, 2)
	NewDriver(b).Step(true)
	assert.InDelta(t, 0.5625, b.Relevance(), 1e-9)
}

func TestDrawFlagsSuppressBuffers(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "draw_buff_min_poly", Value: "false"}, Param{Name: "draw_buff_max_poly", Value: "false"})
	setNav(info, 0, 30, 0, 2)
	res := NewDriver(b).Step(true)
	require.NotNil(t, res.Function)
	assert.Len(t, postsOf(res.Posts, "VIEW_POLYGON"), 1)
}

func TestRefineryBuildsHintedFunction(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "use_refinery", Value: "true"})
	setNav(info, 0, 30, 0, 2)
	res := NewDriver(b).Step(true)
	require.NotNil(t, res.Function)
	crs := res.Function.Domain.Index("course")
	v, ok := res.Function.Eval([]int{0, 8})
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
	best, _, ok := res.Function.Best()
	require.True(t, ok)
	assert.NotEqual(t, 0.0, best[crs])
}

func TestMissingNavWithholdsDecision(t *testing.T) {
	b, info := newAvoid(t)
	info.SetNum("NAV_X", 0)
	info.SetNum("NAV_Y", 30)
	info.SetNum("NAV_HEADING", 0)
	res := NewDriver(b).Step(true)
	assert.Nil(t, res.Function)
	warnings := postsOf(res.Posts, "BHV_WARNING")
	require.Len(t, warnings, 1)
	assert.Equal(t, "avdobs: No Ownship NAV_SPEED in info_buffer", warnings[0].Value)

	info.SetNum("NAV_SPEED", 2)
	res = NewDriver(b).Step(true)
	assert.NotNil(t, res.Function)
}

func TestObstacleAftYieldsNoFunction(t *testing.T) {
	// center at relative bearing 200
	b, info := newAvoid(t)
	require.NoError(t, b.SetParam("poly", "pts={-15.26,-33.19:-5.26,-33.19:-5.26,-23.19:-15.26,-23.19},label=ob_1"))
	setNav(info, 0, 0, 0, 2)
	res := NewDriver(b).Step(true)
	assert.Equal(t, StateRunning, res.State)
	assert.Nil(t, res.Function)
	assert.InDelta(t, 200.0, b.Model().RelBearing(), 0.5)
}

func TestCPAEventDebounce(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "cpa_flag", Value: "CPA_EVENT=$[CPA]"})
	d := NewDriver(b)
	noise := func(k int) float64 {
		if k%2 == 0 {
			return 0.4
		}
		return -0.4
	}
	var ranges []float64
	for k := 0; k <= 40; k++ {
		ranges = append(ranges, 40-0.5*float64(k)+noise(k))
	}
	for j := 1; j <= 30; j++ {
		ranges = append(ranges, 20+0.5*float64(j)+noise(j))
	}

	var posts []Post
	var events []Event
	for _, r := range ranges {
		setNav(info, 0, 60-r, 0, 2)
		posts = append(posts, d.Step(true).Posts...)
		events = append(events, b.Events()...)
	}

	require.Len(t, events, 1)
	assert.Equal(t, "cpa", events[0].Kind)
	assert.InDelta(t, 20.1, events[0].Range, 1e-6)
	cpa := postsOf(posts, "CPA_EVENT")
	require.Len(t, cpa, 1)
	assert.True(t, cpa[0].IsNum)
	assert.InDelta(t, 20.1, cpa[0].Num, 1e-3)
	bhvEvents := postsOf(posts, "BHV_EVENT")
	require.Len(t, bhvEvents, 1)
	assert.Contains(t, bhvEvents[0].Value, "cpa range=20.1")
	assert.Equal(t, KeyRepeatable, bhvEvents[0].Key)
	assert.Equal(t, 1, b.Summary().CPAEvents)
	assert.InDelta(t, 20.1, b.Summary().MinRange, 1e-6)
}

func TestRangeFlags(t *testing.T) {
	b, info := newAvoid(t,
		Param{Name: "rng_flag", Value: "<30 NEAR=$[OID] at $[RNG]"},
		Param{Name: "rng_flag", Value: "ALWAYS=1"},
	)
	d := NewDriver(b)

	setNav(info, 0, 20, 0, 2)
	res := d.Step(true)
	assert.Empty(t, postsOf(res.Posts, "NEAR"))
	always := postsOf(res.Posts, "ALWAYS")
	require.Len(t, always, 1)
	assert.Equal(t, 1.0, always[0].Num)

	setNav(info, 0, 35, 0, 2)
	res = d.Step(true)
	near := postsOf(res.Posts, "NEAR")
	require.Len(t, near, 1)
	assert.Equal(t, "ob_1 at 25", near[0].Value)
}

func TestSideLockHysteresis(t *testing.T) {
	b, info := newAvoid(t)
	require.NoError(t, b.SetParam("poly", "pts={2,60:22,60:22,80:2,80},label=ob_1"))
	d := NewDriver(b)
	step := func(x, y float64) {
		setNav(info, x, y, 0, 2)
		d.Step(true)
	}

	step(0, 15)
	assert.Equal(t, obship.SideNone, b.SideLock())

	// obstacle to starboard and close: lock to port
	step(0, 45)
	require.Equal(t, obship.SideStar, b.Model().PassingSide())
	assert.Greater(t, b.Relevance(), 0.6)
	assert.Equal(t, obship.SidePort, b.SideLock())

	// obstacle now to port but still relevant: the lock holds
	step(30, 45)
	require.Equal(t, obship.SidePort, b.Model().PassingSide())
	assert.Greater(t, b.Relevance(), 0.6)
	assert.Equal(t, obship.SidePort, b.SideLock())

	// relevance drops: lock released
	step(30, 25)
	assert.LessOrEqual(t, b.Relevance(), 0.6)
	assert.Equal(t, obship.SideNone, b.SideLock())

	// relevant again from the other side: lock to starboard
	step(30, 45)
	assert.Equal(t, obship.SideStar, b.SideLock())
	assert.True(t, b.Summary().SideLocked)
}

func TestLockedGutDrawnPink(t *testing.T) {
	b, info := newAvoid(t)
	require.NoError(t, b.SetParam("poly", "pts={2,60:22,60:22,80:2,80},label=ob_1"))
	setNav(info, 0, 45, 0, 2)
	res := NewDriver(b).Step(true)
	require.Equal(t, obship.SidePort, b.SideLock())
	views := postsOf(res.Posts, "VIEW_POLYGON")
	require.NotEmpty(t, views)
	assert.Contains(t, views[0].Value, "fill_color=pink")
}

func TestResolvedByRange(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "endflag", Value: "AVOIDING=false"})
	d := NewDriver(b)
	setNav(info, 0, -20, 0, 2)

	res := d.Step(true)
	assert.Equal(t, StateComplete, res.State)
	assert.Nil(t, res.Function)
	assert.True(t, b.ResolvedPending())
	report := postsOf(res.Posts, "OBSTACLE_RESOLVED")
	require.Len(t, report, 1)
	assert.Equal(t, "ob_1", report[0].Value)
	assert.Len(t, postsOf(res.Posts, "AVOIDING"), 1)

	setNav(info, 0, 40, 0, 2)
	res = d.Step(true)
	assert.Equal(t, StateComplete, res.State)
	assert.Empty(t, postsOf(res.Posts, "OBSTACLE_RESOLVED"))
	assert.True(t, b.ResolvedPending())
}

func TestResolvedByObstacleManager(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "resolved_report_var", Value: "AVD_DONE"})
	d := NewDriver(b)
	setNav(info, 0, 30, 0, 2)
	res := d.Step(true)
	require.Equal(t, StateRunning, res.State)

	info.SetString("OBM_RESOLVED", "ob_7, ob_1")
	res = d.Step(true)
	noted := postsOf(res.Posts, "NOTED_RESOLVED")
	require.Len(t, noted, 2)
	assert.Equal(t, "ob_7", noted[0].Value)
	assert.Equal(t, StateComplete, res.State)
	assert.Len(t, postsOf(res.Posts, "AVD_DONE"), 1)
}

// Run with -tags avoiddebug as well: stale geometry reads panic there.
func TestResolvedBeforeNavLeavesGeometryMacros(t *testing.T) {
	b, info := newAvoid(t,
		Param{Name: "endflag", Value: "DONE=$[OID]"},
		Param{Name: "endflag", Value: "LAST_RNG=$[RNG] side=$[SIDE]"})
	d := NewDriver(b)

	info.SetString("OBM_RESOLVED", "ob_1")
	var res Result
	require.NotPanics(t, func() { res = d.Step(false) })
	assert.Equal(t, StateComplete, res.State)
	assert.True(t, b.Model().Stale())

	done := postsOf(res.Posts, "DONE")
	require.Len(t, done, 1)
	assert.Equal(t, "ob_1", done[0].Value)
	last := postsOf(res.Posts, "LAST_RNG")
	require.Len(t, last, 1)
	assert.Equal(t, "$[RNG] side=$[SIDE]", last[0].Value)
	assert.Len(t, postsOf(res.Posts, "OBSTACLE_RESOLVED"), 1)
	resolved := postsOf(res.Posts, "BHV_EVENT")
	require.Len(t, resolved, 1)
	assert.Contains(t, resolved[0].Value, "resolved range=")
}

func TestEndFlagGeometryMacrosAfterValidCycle(t *testing.T) {
	b, info := newAvoid(t, Param{Name: "endflag", Value: "LAST_RNG=$[RNG]"})
	d := NewDriver(b)
	setNav(info, 0, 30, 0, 2)
	require.Equal(t, StateRunning, d.Step(true).State)

	info.SetString("OBM_RESOLVED", "ob_1")
	res := d.Step(true)
	require.Equal(t, StateComplete, res.State)
	last := postsOf(res.Posts, "LAST_RNG")
	require.Len(t, last, 1)
	assert.True(t, last[0].IsNum)
	assert.InDelta(t, 30.0, last[0].Num, 1e-9)
}

func TestIdleErasesAndCompletes(t *testing.T) {
	b, info := newAvoid(t)
	d := NewDriver(b)
	setNav(info, 0, 30, 0, 2)

	res := d.Step(false)
	assert.Equal(t, StateIdle, res.State)
	views := postsOf(res.Posts, "VIEW_POLYGON")
	require.Len(t, views, 3)
	for _, v := range views {
		assert.True(t, strings.HasSuffix(v.Value, "active=false"), v.Value)
	}
	assert.Contains(t, views[2].Value, "fill_color=invisible")

	res = d.Step(true)
	assert.Equal(t, StateRunning, res.State)
	assert.Len(t, postsOf(res.Posts, "BHV_SETTINGS"), 1)

	setNav(info, 0, -20, 0, 2)
	res = d.Step(false)
	assert.Equal(t, StateComplete, res.State)
}
