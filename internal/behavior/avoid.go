// internal/behavior/avoid.go

package behavior

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"avoidance-core/internal/ivp"
	"avoidance-core/internal/obship"
	"avoidance-core/internal/platmodel"
	"avoidance-core/internal/refinery"
	"avoidance-core/internal/spatial"
)

// TypeAvoidObstacle is the registered type name of AvoidObstacle.
const TypeAvoidObstacle = "BHV_AvoidObstacleV24"

var _ Behavior = (*AvoidObstacle)(nil)

const (
	sideLockRelevance = 0.6
	cpaNoiseMargin    = 1.0
	defaultUniform    = "discrete@course:3,speed:3"
)

// Event is a discrete encounter event for outer consumers.
type Event struct {
	Kind  string  `json:"kind"`
	Range float64 `json:"range"`
}

// Encounter summarizes one obstacle track.
type Encounter struct {
	ObstacleID   string  `json:"obstacle_id"`
	Label        string  `json:"label"`
	MinRange     float64 `json:"min_range"`
	CPAEvents    int     `json:"cpa_events"`
	MaxRelevance float64 `json:"max_relevance"`
	SideLocked   bool    `json:"side_locked"`
	Resolved     bool    `json:"resolved"`
	Cycles       int     `json:"cycles"`
}

// AvoidObstacle steers ownship clear of one convex obstacle.
type AvoidObstacle struct {
	Poster

	info   *InfoBuffer
	domain ivp.Domain
	logger *slog.Logger
	model  *obship.Model
	gen    platmodel.DubinsGenerator
	refine *refinery.Refinery

	// configuration
	priority          float64
	pwtGrade          string
	useRefinery       bool
	buildInfo         string
	updateVar         string
	spawnable         bool
	resolvedVar       string
	resolvedReportVar string
	aftDegs           float64
	drawMin, drawMax  bool
	hints             Hints
	rngFlags          []Flag
	rngThresh         []float64
	cpaFlags          []Flag
	endFlags          []Flag
	obstacleID        string

	// state
	resolvedPending bool
	completed       bool
	reported        bool
	validInfo       bool
	relevance       float64
	sideLock        obship.Side
	closing         bool
	cpaSofar        float64
	fpaSofar        float64
	cpaReported     float64
	cpaEver         float64
	events          []Event
	stats           Encounter
}

// NewAvoidObstacle returns a behavior deciding over the course and speed
// axes of domain and reading mail from info.
func NewAvoidObstacle(domain ivp.Domain, info *InfoBuffer, logger *slog.Logger) *AvoidObstacle {
	if logger == nil {
		logger = slog.Default()
	}
	if sub, err := domain.SubDomain("course", "speed"); err == nil {
		domain = sub
	}
	b := &AvoidObstacle{
		Poster:            Poster{descriptor: "avdobs"},
		info:              info,
		domain:            domain,
		logger:            logger,
		model:             obship.New(),
		gen:               platmodel.NewDubinsGenerator(),
		refine:            refinery.New(domain, logger),
		priority:          100,
		pwtGrade:          "linear",
		resolvedVar:       "OBM_RESOLVED",
		resolvedReportVar: "OBSTACLE_RESOLVED",
		aftDegs:           20,
		drawMin:           true,
		drawMax:           true,
		hints:             defaultHints(),
		sideLock:          obship.SideNone,
		cpaSofar:          -1,
		fpaSofar:          -1,
		cpaReported:       -1,
		cpaEver:           -1,
	}
	b.stats.MinRange = -1
	return b
}

func (b *AvoidObstacle) Name() string { return b.descriptor }

// Model exposes the relational model for inspection.
func (b *AvoidObstacle) Model() *obship.Model { return b.model }

// ObstacleID is the id of the obstacle track, empty until configured.
func (b *AvoidObstacle) ObstacleID() string { return b.obstacleID }

// Relevance is the graded relevance computed in the last running cycle.
func (b *AvoidObstacle) Relevance() float64 { return b.relevance }

// SideLock is the side ownship is currently held to, SideNone when unlocked.
func (b *AvoidObstacle) SideLock() obship.Side { return b.sideLock }

// ResolvedPending reports whether the encounter is known to be over.
func (b *AvoidObstacle) ResolvedPending() bool { return b.resolvedPending }

// Completed reports whether the behavior finished.
func (b *AvoidObstacle) Completed() bool { return b.completed }

// Spawnable reports whether the behavior is a template for spawned tracks.
func (b *AvoidObstacle) Spawnable() bool { return b.spawnable }

// UpdateVar is the mail variable carrying parameter updates for spawned tracks.
func (b *AvoidObstacle) UpdateVar() string { return b.updateVar }

// Events returns and clears the encounter events since the last call.
func (b *AvoidObstacle) Events() []Event {
	out := b.events
	b.events = nil
	return out
}

// Summary returns the encounter summary so far.
func (b *AvoidObstacle) Summary() Encounter {
	s := b.stats
	s.ObstacleID = b.obstacleID
	s.Label = b.model.Label()
	s.Resolved = b.resolvedPending
	return s
}

// SetParam applies one parameter. Rejected values leave the behavior unchanged.
func (b *AvoidObstacle) SetParam(param, val string) error {
	param = strings.ToLower(strings.TrimSpace(param))
	val = strings.TrimSpace(val)

	switch param {
	case "name", "descriptor":
		if val == "" {
			return errors.New("name must not be empty")
		}
		b.descriptor = val
		return nil
	case "pwt", "priority":
		v, err := nonNegative(param, val)
		if err != nil {
			return err
		}
		b.priority = v
		return nil
	case "updates":
		b.updateVar = val
		return nil
	case "templating":
		b.spawnable = strings.EqualFold(val, "spawn")
		return nil
	case "build_info":
		b.buildInfo = val
		return nil
	case "endflag", "end_flag":
		f, err := ParseFlag(val)
		if err != nil {
			return err
		}
		b.endFlags = append(b.endFlags, f)
		return nil
	case "polygon", "poly":
		return b.model.SetGutPolySpec(val)
	case "allowable_ttc":
		v, err := nonNegative(param, val)
		if err != nil {
			return err
		}
		return b.model.SetAllowableTTC(v)
	case "min_util_cpa_dist", "max_util_cpa_dist", "pwt_inner_dist", "pwt_outer_dist", "completed_dist":
		v, err := nonNegative(param, val)
		if err != nil {
			return err
		}
		return b.setThreshold(param, v)
	case "pwt_grade":
		switch val {
		case "linear", "quadratic", "quasi":
			b.pwtGrade = val
			return nil
		}
		return fmt.Errorf("pwt_grade %q: want linear, quadratic or quasi", val)
	case "draw_buff_min_poly":
		return setBool(&b.drawMin, param, val)
	case "draw_buff_max_poly":
		return setBool(&b.drawMax, param, val)
	case "use_refinery":
		return setBool(&b.useRefinery, param, val)
	case "rng_flag":
		return b.addRangeFlag(val)
	case "cpa_flag":
		f, err := ParseFlag(val)
		if err != nil {
			return err
		}
		b.cpaFlags = append(b.cpaFlags, f)
		return nil
	case "visual_hints":
		return b.hints.SetHints(val)
	case "id":
		if val == "" || strings.ContainsAny(val, " \t") {
			return fmt.Errorf("id %q must be non-empty without whitespace", val)
		}
		if b.obstacleID != "" && b.obstacleID != val {
			return fmt.Errorf("id already set to %s", b.obstacleID)
		}
		b.obstacleID = val
		return nil
	case "aft_exclusion_degs":
		v, err := nonNegative(param, val)
		if err != nil {
			return err
		}
		if v > 90 {
			return errors.New("aft_exclusion_degs must be <= 90")
		}
		b.aftDegs = v
		return nil
	case "turn_radius":
		v, err := nonNegative(param, val)
		if err != nil {
			return err
		}
		b.gen.Radius = v
		return nil
	case "spoke_degs":
		v, err := nonNegative(param, val)
		if err != nil {
			return err
		}
		if v == 0 || v > 90 {
			return errors.New("spoke_degs must be in (0, 90]")
		}
		b.gen.SpokeDegs = v
		return nil
	case "resolved_obstacle_var":
		if val == "" {
			return errors.New("resolved_obstacle_var must not be empty")
		}
		b.resolvedVar = val
		return nil
	case "resolved_report_var":
		if val == "" {
			return errors.New("resolved_report_var must not be empty")
		}
		b.resolvedReportVar = val
		return nil
	}
	return fmt.Errorf("unknown parameter %q", param)
}

func (b *AvoidObstacle) setThreshold(param string, v float64) error {
	switch param {
	case "min_util_cpa_dist":
		return b.model.SetMinUtilCPA(v)
	case "max_util_cpa_dist":
		return b.model.SetMaxUtilCPA(v)
	case "pwt_inner_dist":
		return b.model.SetPwtInnerDist(v)
	case "pwt_outer_dist":
		return b.model.SetPwtOuterDist(v)
	}
	return b.model.SetCompletedDist(v)
}

// addRangeFlag reads "<thresh VAR=VAL" or "VAR=VAL"; the latter posts at any range.
func (b *AvoidObstacle) addRangeFlag(s string) error {
	thresh := -1.0
	if strings.HasPrefix(s, "<") {
		num, rest, _ := strings.Cut(strings.TrimSpace(s[1:]), " ")
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return fmt.Errorf("rng_flag %q: bad threshold", s)
		}
		thresh, s = v, rest
	}
	f, err := ParseFlag(s)
	if err != nil {
		return fmt.Errorf("rng_flag: %w", err)
	}
	b.rngFlags = append(b.rngFlags, f)
	b.rngThresh = append(b.rngThresh, thresh)
	return nil
}

// OnSetParamComplete runs after the initial parameters are applied.
func (b *AvoidObstacle) OnSetParamComplete() {
	b.postConfigStatus()
}

// OnHelmStart asks the obstacle manager for alerts when this behavior is a
// spawning template.
func (b *AvoidObstacle) OnHelmStart() {
	if !b.spawnable || b.updateVar == "" {
		return
	}
	req := "name=" + b.descriptor +
		",update_var=" + b.updateVar +
		",alert_range=" + FormatNum(b.model.PwtOuterDist(), 1)
	b.PostMessage("OBM_ALERT_REQUEST", req, "")
}

// OnEveryState updates the model from mail and tracks the encounter.
func (b *AvoidObstacle) OnEveryState(State) {
	for _, raw := range b.info.Deltas(b.resolvedVar) {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			b.PostMessage("NOTED_RESOLVED", id, "")
			if id == b.obstacleID {
				b.resolvedPending = true
			}
		}
	}

	b.validInfo = false
	if !b.updatePlatformInfo() {
		return
	}
	b.model.Refresh()
	if err := b.model.Valid(); err != nil {
		b.logger.Debug("obstacle model invalid", "behavior", b.descriptor, "error", err)
		b.PostWarning("Invalid update of ownship/obship model")
	} else {
		b.validInfo = true
	}
	if msg := b.model.FailedExpand(true); msg != "" {
		b.PostWarning(msg)
	}
	if !b.validInfo {
		return
	}
	b.stats.Cycles++

	rng := b.model.Range()
	if b.cpaEver < 0 || rng < b.cpaEver {
		b.cpaEver = rng
	}
	b.cpaReported = b.cpaEver
	b.stats.MinRange = b.cpaEver

	var rngFlags []Flag
	for i, f := range b.rngFlags {
		if t := b.rngThresh[i]; t <= 0 || rng < t {
			rngFlags = append(rngFlags, f)
		}
	}
	b.postFlags(rngFlags, false)

	if b.cpaEvent(rng) && rng < b.model.PwtOuterDist() {
		b.cpaReported = b.cpaSofar
		b.postFlags(b.cpaFlags, false)
		b.event("cpa", b.cpaSofar)
		b.stats.CPAEvents++
		b.cpaReported = b.cpaEver
	}

	if rng > b.model.CompletedDist() {
		b.resolvedPending = true
	}
}

// cpaEvent tracks the closest and farthest range seen while closing and
// opening. It reports an event once range opens more than the noise margin
// past the closest point.
func (b *AvoidObstacle) cpaEvent(rng float64) bool {
	if b.cpaSofar < 0 || b.fpaSofar < 0 {
		b.cpaSofar, b.fpaSofar = rng, rng
	}
	if b.closing {
		b.cpaSofar = math.Min(b.cpaSofar, rng)
		if rng > b.cpaSofar+cpaNoiseMargin {
			b.closing = false
			b.fpaSofar = rng
			return true
		}
		return false
	}
	b.fpaSofar = math.Max(b.fpaSofar, rng)
	if rng < b.fpaSofar-cpaNoiseMargin {
		b.closing = true
		b.cpaSofar = rng
	}
	return false
}

// updatePlatformInfo reads the ownship pose from mail and regenerates the
// platform model. A missing field withholds the decision for this cycle.
func (b *AvoidObstacle) updatePlatformInfo() bool {
	x, okX := b.info.Num("NAV_X")
	y, okY := b.info.Num("NAV_Y")
	h, okH := b.info.Num("NAV_HEADING")
	v, okV := b.info.Num("NAV_SPEED")

	var warning string
	if !okX || !okY {
		warning = "No Ownship NAV_X and/or NAV_Y in info_buffer"
	}
	if !okH {
		warning = "No Ownship NAV_HEADING in info_buffer"
	}
	if !okV {
		warning = "No Ownship NAV_SPEED in info_buffer"
	}
	if warning != "" {
		b.PostWarning(warning)
		return false
	}
	b.model.SetPlatModel(b.gen.Generate(x, y, h, v))
	return true
}

// OnIdle erases the drawings and completes a resolved encounter.
func (b *AvoidObstacle) OnIdle() {
	b.postErasablePolygons()
	if b.resolvedPending {
		b.setComplete()
	}
}

// OnIdleToRun republishes the configuration.
func (b *AvoidObstacle) OnIdleToRun() {
	b.postConfigStatus()
}

// OnRun returns the avoidance function for this cycle, or nil when the
// obstacle is resolved, unusable, behind or irrelevant.
func (b *AvoidObstacle) OnRun() *ivp.Function {
	if b.resolvedPending {
		b.setComplete()
		return nil
	}
	if !b.validInfo {
		return nil
	}
	b.model.EnsureFresh()
	if b.model.IsObstacleAft(b.aftDegs) {
		return nil
	}
	b.relevance = b.getRelevance()
	if b.relevance <= 0 {
		return nil
	}
	b.stats.MaxRelevance = math.Max(b.stats.MaxRelevance, b.relevance)
	return b.buildOF()
}

// OnComplete erases the drawings and reports the obstacle resolved once.
func (b *AvoidObstacle) OnComplete() {
	b.postErasablePolygons()
	if b.reported {
		return
	}
	id := b.obstacleID
	if id == "" {
		id = b.model.Label()
	}
	b.PostRepeatable(b.resolvedReportVar, id)
	b.event("resolved", b.cpaEver)
	b.reported = true
}

func (b *AvoidObstacle) event(kind string, rng float64) {
	b.events = append(b.events, Event{Kind: kind, Range: rng})
	b.PostEvent(fmt.Sprintf("%s range=%.1f", kind, rng))
}

func (b *AvoidObstacle) setComplete() {
	b.postFlags(b.endFlags, true)
	b.completed = true
}

func (b *AvoidObstacle) buildOF() *ivp.Function {
	aof := obship.NewAOF(b.model, b.domain)
	if err := aof.Initialize(); err != nil {
		b.PostWarning("Unable to init avoidance objective: " + err.Error())
		return nil
	}

	builder := ivp.NewBuilder(b.domain, aof)
	if b.useRefinery {
		b.refine.SetSideLock(b.sideLock)
		b.refine.SetRefineRegions(b.model)
		for _, p := range b.refine.Plateaus() {
			builder.AddPlateau(p)
		}
		for _, bs := range b.refine.Basins() {
			builder.AddBasin(bs)
		}
	}

	spec := b.buildInfo
	if spec == "" {
		spec = defaultUniform
	}
	if err := builder.SetUniformPieceSpec(spec); err != nil {
		b.PostWarning("build_info: " + err.Error())
		return nil
	}
	if err := builder.Create(); err != nil {
		b.PostWarning(strings.Join(append([]string{err.Error()}, builder.Warnings()...), "; "))
		return nil
	}
	fn, err := builder.Extract(true)
	if err != nil {
		b.PostWarning(err.Error())
		return nil
	}
	fn.PWT = b.relevance * b.priority
	b.postViewablePolygons()
	return fn
}

// getRelevance grades the raw range relevance and updates the side lock. The
// lock is taken above the threshold and released at or below it.
func (b *AvoidObstacle) getRelevance() float64 {
	raw := b.model.RangeRelevance()
	if raw <= 0 {
		return 0
	}
	if raw > sideLockRelevance {
		if b.sideLock == obship.SideNone {
			b.sideLock = b.model.PassingSide().Opposite()
			if b.sideLock != obship.SideNone {
				b.stats.SideLocked = true
			}
		}
	} else {
		b.sideLock = obship.SideNone
	}

	switch b.pwtGrade {
	case "quadratic":
		return raw * raw
	case "quasi":
		return math.Pow(raw, 1.5)
	}
	return raw
}

func (b *AvoidObstacle) labels() (gut, mid, rim string) {
	l := b.model.Label()
	return l, l + "_mid_poly", l + "_rim_poly"
}

func (b *AvoidObstacle) postViewablePolygons() {
	gutLabel, midLabel, rimLabel := b.labels()

	switch {
	case b.relevance > 0 && b.sideLock != obship.SideNone:
		b.hints["gut_fill_color"] = "pink"
	case b.relevance > 0:
		b.hints["gut_fill_color"] = "gray60"
	default:
		b.hints["gut_fill_color"] = "off"
	}
	buffFill := "off"
	if b.relevance > 0 {
		buffFill = "gray70"
	}
	b.hints["mid_fill_color"] = buffFill
	b.hints["rim_fill_color"] = buffFill

	b.PostMessage("VIEW_POLYGON", spatial.FormatPolygon(b.model.GutPoly(), gutLabel, b.hints.Apply("gut", "obst")...), "gut")
	if b.drawMin {
		b.PostMessage("VIEW_POLYGON", spatial.FormatPolygon(b.model.MidPoly(), midLabel, b.hints.Apply("mid", "buff_min")...), "mid")
	}
	if b.drawMax {
		b.PostMessage("VIEW_POLYGON", spatial.FormatPolygon(b.model.RimPoly(), rimLabel, b.hints.Apply("rim", "buff_max")...), "rim")
	}
}

func (b *AvoidObstacle) postErasablePolygons() {
	gutLabel, midLabel, rimLabel := b.labels()
	b.PostMessage("VIEW_POLYGON", spatial.FormatInactive(gutLabel), "gut")
	b.PostMessage("VIEW_POLYGON", spatial.FormatInactive(midLabel), "mid")
	b.PostMessage("VIEW_POLYGON", spatial.FormatPolygon(nil, rimLabel,
		spatial.Attr{Key: "fill_color", Val: "invisible"},
		spatial.Attr{Key: "active", Val: "false"}), "rim")
}

func (b *AvoidObstacle) postConfigStatus() {
	m := b.model
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	s := "type=" + TypeAvoidObstacle + ",name=" + b.descriptor +
		",allowable_ttc=" + f(m.AllowableTTC()) +
		",min_util_cpa=" + f(m.MinUtilCPA()) +
		",max_util_cpa=" + f(m.MaxUtilCPA()) +
		",pwt_outer_dist=" + f(m.PwtOuterDist()) +
		",pwt_inner_dist=" + f(m.PwtInnerDist()) +
		",completed_dist=" + f(m.CompletedDist())
	b.PostRepeatable("BHV_SETTINGS", s)
}

func (b *AvoidObstacle) postFlags(flags []Flag, repeatable bool) {
	key := ""
	if repeatable {
		key = KeyRepeatable
	}
	for _, f := range flags {
		p := f.Resolve(b.expandMacros)
		if p.IsNum {
			b.PostNum(p.Var, p.Num, key)
		} else {
			b.PostMessage(p.Var, p.Value, key)
		}
	}
}

// expandMacros fills flag macros. Geometry macros are only bound when this
// cycle refreshed a valid model; otherwise they are left in place.
func (b *AvoidObstacle) expandMacros(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	lock := ""
	if b.sideLock != obship.SideNone {
		lock = string(b.sideLock)
	}
	m := Macros{
		"CPA":   FormatNum(b.cpaReported, 3),
		"SLOCK": lock,
		"OID":   b.model.Label(),
	}
	if b.validInfo && !b.model.Stale() {
		m["RNG"] = FormatNum(b.model.Range(), 3)
		m["BNG"] = FormatNum(b.model.CenterBearing(), 3)
		m["RBNG"] = FormatNum(b.model.RelBearing(), 3)
		m["SIDE"] = string(b.model.PassingSide())
	}
	return m.Expand(s)
}

func nonNegative(param, val string) (float64, error) {
	v, err := strconv.ParseFloat(val, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number, got %q", param, val)
	}
	return v, nil
}

func setBool(dst *bool, param, val string) error {
	v, err := strconv.ParseBool(strings.ToLower(val))
	if err != nil {
		return fmt.Errorf("%s: %w", param, err)
	}
	*dst = v
	return nil
}
