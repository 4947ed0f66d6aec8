package avoidhelm

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/config"
	"avoidance-core/internal/encounter"
	"avoidance-core/internal/ivp"
	"avoidance-core/internal/metrics"
	"avoidance-core/internal/obship"
	"avoidance-core/internal/spatial"
)

var (
	ErrNoTemplate = errors.New("no spawn template")
	ErrOutOfScope = errors.New("obstacle outside alert range")
)

// Alert asks the helm to track an obstacle, spawning a behavior from a
// template on first sight and updating it afterwards.
type Alert struct {
	ID       string
	Poly     string
	Template string
	Params   []behavior.Param
}

// EncounterEvent is a behavior event tagged with its source.
type EncounterEvent struct {
	Behavior   string `json:"behavior"`
	ObstacleID string `json:"obstacle_id"`
	behavior.Event
}

// Decision is the jointly best point of the functions emitted in a cycle.
type Decision struct {
	Values  map[string]float64 `json:"values"`
	Utility float64            `json:"utility"`
	Sources int                `json:"sources"`
}

// CycleOutput is everything one helm iteration produced.
type CycleOutput struct {
	Iteration int
	Time      time.Time
	Results   []behavior.Result
	Decision  *Decision
	Events    []EncounterEvent
	Finished  []encounter.Record
	Warnings  int
}

// BehaviorStatus is a read-only view of one behavior.
type BehaviorStatus struct {
	Name       string             `json:"name"`
	Template   string             `json:"template"`
	ObstacleID string             `json:"obstacle_id,omitempty"`
	State      string             `json:"state"`
	Relevance  float64            `json:"relevance"`
	SideLock   string             `json:"side_lock,omitempty"`
	Range      float64            `json:"range"`
	Resolved   bool               `json:"resolved_pending"`
	Summary    behavior.Encounter `json:"summary"`
}

type entry struct {
	avoid    *behavior.AvoidObstacle
	driver   *behavior.Driver
	template string
	cond     behavior.Condition
	started  time.Time
	events   []behavior.Event
	rng      float64
}

// Helm owns the behaviors of one vehicle and steps them once per cycle. All
// methods are safe for concurrent use; behaviors only ever run under the
// helm's lock.
type Helm struct {
	mu        sync.Mutex
	vehicle   string
	domain    ivp.Domain
	templates *config.Templates
	info      *behavior.InfoBuffer
	logger    *slog.Logger
	entries   []*entry
	iteration int
	last      *Decision
}

// NewHelm builds a helm and instantiates the static templates.
func NewHelm(vehicle string, ts *config.Templates, logger *slog.Logger) (*Helm, error) {
	if logger == nil {
		logger = slog.Default()
	}
	domain, err := ts.ParsedDomain()
	if err != nil {
		return nil, fmt.Errorf("helm domain: %w", err)
	}
	h := &Helm{
		vehicle:   vehicle,
		domain:    domain,
		templates: ts,
		info:      behavior.NewInfoBuffer(),
		logger:    logger,
	}
	for _, t := range ts.Behaviors {
		if t.Spawn() {
			continue
		}
		if _, err := h.instantiate(t, nil, time.Time{}); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Info is the mail buffer behaviors read from.
func (h *Helm) Info() *behavior.InfoBuffer { return h.info }

// Domain is the decision domain.
func (h *Helm) Domain() ivp.Domain { return h.domain }

// Start returns the posts spawn templates make at helm start, such as alert
// requests to the obstacle manager.
func (h *Helm) Start() []behavior.Post {
	h.mu.Lock()
	defer h.mu.Unlock()
	var posts []behavior.Post
	for _, t := range h.templates.Behaviors {
		if !t.Spawn() {
			continue
		}
		tmpl := behavior.NewAvoidObstacle(h.domain, h.info, h.logger)
		if err := behavior.Configure(tmpl, t.BehaviorParams()); err != nil {
			h.logger.Warn("template rejected", "template", t.Name, "error", err)
		}
		tmpl.OnHelmStart()
		posts = append(posts, tmpl.Drain()...)
	}
	return posts
}

// SetTemplates swaps the templates used for future spawns and instantiates
// static templates not yet running. Running behaviors keep their settings.
func (h *Helm) SetTemplates(ts *config.Templates) error {
	domain, err := ts.ParsedDomain()
	if err != nil {
		return fmt.Errorf("helm domain: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if domain.String() != h.domain.String() {
		return fmt.Errorf("domain change %s -> %s needs a restart", h.domain, domain)
	}
	h.templates = ts

	running := make(map[string]bool, len(h.entries))
	for _, e := range h.entries {
		running[e.avoid.Name()] = true
	}
	var errs []error
	for _, t := range ts.Behaviors {
		if t.Spawn() || running[t.Name] {
			continue
		}
		if _, err := h.instantiate(t, nil, time.Time{}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Helm) instantiate(t config.Template, extra []behavior.Param, now time.Time) (*entry, error) {
	cond, err := behavior.ParseCondition(t.Condition)
	if err != nil {
		return nil, fmt.Errorf("behavior %s: %w", t.Name, err)
	}
	b := behavior.NewAvoidObstacle(h.domain, h.info, h.logger)
	if err := behavior.Configure(b, append(t.BehaviorParams(), extra...)); err != nil {
		return nil, fmt.Errorf("configure %s: %w", t.Name, err)
	}
	e := &entry{
		avoid:    b,
		driver:   behavior.NewDriver(b),
		template: t.Name,
		cond:     cond,
		started:  now,
		rng:      -1,
	}
	h.entries = append(h.entries, e)
	metrics.BehaviorsSpawned.WithLabelValues(h.vehicle, t.Name).Inc()
	return e, nil
}

// Spawn handles an obstacle alert. It reports whether a new behavior was
// created; an alert for a tracked obstacle updates its behavior instead.
func (h *Helm) Spawn(a Alert, now time.Time) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		if e.avoid.ObstacleID() != a.ID || e.driver.State() == behavior.StateComplete {
			continue
		}
		var errs []error
		if a.Poly != "" {
			if err := e.avoid.SetParam("poly", a.Poly); err != nil {
				errs = append(errs, fmt.Errorf("poly: %w", err))
			}
		}
		for _, p := range a.Params {
			if err := e.avoid.SetParam(p.Name, p.Value); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			metrics.SpawnErrors.WithLabelValues(h.vehicle).Inc()
			return false, fmt.Errorf("update %s: %w", e.avoid.Name(), err)
		}
		return false, nil
	}

	t, err := h.spawnTemplate(a.Template)
	if err != nil {
		metrics.SpawnErrors.WithLabelValues(h.vehicle).Inc()
		return false, err
	}
	if err := h.inScope(a.Poly); err != nil {
		return false, err
	}

	// A spawned copy is an instance, not a template: it must not ask the
	// obstacle manager for alerts of its own.
	extra := []behavior.Param{
		{Name: "templating", Value: "instance"},
		{Name: "name", Value: t.Name + "_" + a.ID},
		{Name: "id", Value: a.ID},
		{Name: "poly", Value: a.Poly},
	}
	if _, err := h.instantiate(t, append(extra, a.Params...), now); err != nil {
		metrics.SpawnErrors.WithLabelValues(h.vehicle).Inc()
		return false, err
	}
	h.logger.Info("behavior spawned", "template", t.Name, "obstacle", a.ID)
	return true, nil
}

func (h *Helm) spawnTemplate(name string) (config.Template, error) {
	for _, t := range h.templates.Behaviors {
		if t.Spawn() && (name == "" || t.Name == name) {
			return t, nil
		}
	}
	if name != "" {
		return config.Template{}, fmt.Errorf("%w named %s", ErrNoTemplate, name)
	}
	return config.Template{}, ErrNoTemplate
}

// inScope applies the templates' alert range around the last known pose. With
// no range or no pose every obstacle is in scope.
func (h *Helm) inScope(polySpec string) error {
	if h.templates.AlertRange <= 0 {
		return nil
	}
	x, okX := h.info.Num("NAV_X")
	y, okY := h.info.Num("NAV_Y")
	if !okX || !okY {
		return nil
	}
	poly, _, _, err := spatial.ParsePolygon(polySpec)
	if err != nil {
		return err
	}
	scope := spatial.NewAlertScope(spatial.Point{X: x, Y: y}, h.templates.AlertRange)
	if !scope.Reaches(poly) {
		return ErrOutOfScope
	}
	return nil
}

// Cycle steps every behavior once, retires completed ones and solves for the
// jointly best decision. Mail deltas are cleared at the end.
func (h *Helm) Cycle(now time.Time) CycleOutput {
	start := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()

	h.iteration++
	out := CycleOutput{Iteration: h.iteration, Time: now}
	var fns []*ivp.Function
	keep := h.entries[:0]
	for _, e := range h.entries {
		if e.started.IsZero() {
			e.started = now
		}
		res := e.driver.Step(e.cond.Eval(h.info))
		out.Results = append(out.Results, res)

		if res.Function != nil {
			fns = append(fns, res.Function)
			metrics.FunctionsEmitted.WithLabelValues(h.vehicle).Inc()
			metrics.Relevance.WithLabelValues(h.vehicle).Observe(e.avoid.Relevance())
		}
		for _, p := range res.Posts {
			if p.Var == "BHV_WARNING" {
				out.Warnings++
				metrics.WarningsPosted.WithLabelValues(h.vehicle).Inc()
			}
		}
		for _, ev := range e.avoid.Events() {
			e.events = append(e.events, ev)
			out.Events = append(out.Events, EncounterEvent{Behavior: res.Name, ObstacleID: e.avoid.ObstacleID(), Event: ev})
			metrics.EncounterEvents.WithLabelValues(h.vehicle, ev.Kind).Inc()
		}
		if m := e.avoid.Model(); !m.Stale() && m.Valid() == nil {
			e.rng = m.Range()
		}

		if res.State == behavior.StateComplete {
			out.Finished = append(out.Finished,
				encounter.NewRecord(h.vehicle, res.Name, e.avoid.Summary(), e.events, e.started, now))
			continue
		}
		keep = append(keep, e)
	}
	for i := len(keep); i < len(h.entries); i++ {
		h.entries[i] = nil
	}
	h.entries = keep

	h.last = nil
	if len(fns) > 0 {
		vals, util := ivp.Solve(fns...)
		dom := fns[0].Domain
		d := &Decision{Values: make(map[string]float64, len(vals)), Utility: util, Sources: len(fns)}
		for i, v := range vals {
			d.Values[dom.Axis(i).Name] = v
		}
		out.Decision = d
		h.last = d
	}
	h.info.ClearDeltas()

	metrics.ActiveBehaviors.WithLabelValues(h.vehicle).Set(float64(len(h.entries)))
	metrics.CyclesTotal.WithLabelValues(h.vehicle).Inc()
	metrics.CycleLatency.WithLabelValues(h.vehicle).Observe(time.Since(start).Seconds())
	return out
}

// Snapshot lists the running behaviors by name.
func (h *Helm) Snapshot() []BehaviorStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]BehaviorStatus, 0, len(h.entries))
	for _, e := range h.entries {
		lock := ""
		if s := e.avoid.SideLock(); s != obship.SideNone {
			lock = string(s)
		}
		out = append(out, BehaviorStatus{
			Name:       e.avoid.Name(),
			Template:   e.template,
			ObstacleID: e.avoid.ObstacleID(),
			State:      e.driver.State().String(),
			Relevance:  e.avoid.Relevance(),
			SideLock:   lock,
			Range:      e.rng,
			Resolved:   e.avoid.ResolvedPending(),
			Summary:    e.avoid.Summary(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Status returns one behavior by name or obstacle id.
func (h *Helm) Status(id string) (BehaviorStatus, bool) {
	for _, s := range h.Snapshot() {
		if s.Name == id || s.ObstacleID == id {
			return s, true
		}
	}
	return BehaviorStatus{}, false
}

// LastDecision is the decision of the latest cycle, nil when none.
func (h *Helm) LastDecision() *Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Iteration is the number of cycles run.
func (h *Helm) Iteration() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.iteration
}
