package avoidhelm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"avoidance-core/internal/angle"
	"avoidance-core/internal/config"
	"avoidance-core/internal/encounter"
	"avoidance-core/internal/ivp"
	"avoidance-core/internal/spatial"
)

// Pose is an ownship position, heading and speed.
type Pose struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Heading float64 `yaml:"heading" validate:"gte=0,lt=360"`
	Speed   float64 `yaml:"speed" validate:"gte=0"`
}

// Transit is the course ownship holds when nothing is in the way.
type Transit struct {
	Heading float64 `yaml:"heading" validate:"gte=0,lt=360"`
	Speed   float64 `yaml:"speed" validate:"gte=0"`
	PWT     float64 `yaml:"pwt" validate:"gte=0"`
}

// ScenarioObstacle is an obstacle that is reported from cycle AppearAt on.
type ScenarioObstacle struct {
	ID       string `yaml:"id" validate:"required"`
	Poly     string `yaml:"poly" validate:"required"`
	AppearAt int    `yaml:"appear_at" validate:"gte=0"`
}

// Scenario scripts an offline run.
type Scenario struct {
	Name      string             `yaml:"name"`
	Start     Pose               `yaml:"start"`
	Transit   Transit            `yaml:"transit"`
	DT        float64            `yaml:"dt" validate:"gt=0"`
	Cycles    int                `yaml:"cycles" validate:"gt=0"`
	Mail      map[string]string  `yaml:"mail"`
	Obstacles []ScenarioObstacle `yaml:"obstacles" validate:"dive"`
}

var validate = validator.New()

// LoadScenario decodes and validates a scenario. DT defaults to one second
// and the transit PWT to 100.
func LoadScenario(data []byte) (*Scenario, error) {
	sc := Scenario{DT: 1, Transit: Transit{PWT: 100}}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := validate.Struct(&sc); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	for _, o := range sc.Obstacles {
		poly, _, _, err := spatial.ParsePolygon(o.Poly)
		if err != nil {
			return nil, fmt.Errorf("scenario obstacle %s: %w", o.ID, err)
		}
		if !poly.IsConvex() {
			return nil, fmt.Errorf("scenario obstacle %s: not convex", o.ID)
		}
	}
	return &sc, nil
}

// SimRow is one simulated cycle.
type SimRow struct {
	Cycle     int
	Pose      Pose
	Behaviors []BehaviorStatus
	Decision  *Decision
	Events    []EncounterEvent
	Warnings  int
}

// SimResult is a finished run.
type SimResult struct {
	Rows    []SimRow
	Records []encounter.Record
}

// transitObjective prefers the transit heading and speed.
type transitObjective struct {
	t               Transit
	courseIx, spdIx int
}

func (o transitObjective) Initialize() error {
	if o.courseIx < 0 {
		return ivp.ErrMissingAxis
	}
	return nil
}

func (o transitObjective) Eval(vals []float64) float64 {
	u := 100 - 100*angle.Diff(vals[o.courseIx], o.t.Heading)/180
	if o.spdIx >= 0 {
		u -= 10 * math.Abs(vals[o.spdIx]-o.t.Speed)
	}
	return u
}

func transitFunction(domain ivp.Domain, t Transit) (*ivp.Function, error) {
	of := transitObjective{t: t, courseIx: domain.Index("course"), spdIx: domain.Index("speed")}
	b := ivp.NewBuilder(domain, of)
	if err := b.Create(); err != nil {
		return nil, fmt.Errorf("transit function: %w", err)
	}
	fn, err := b.Extract(true)
	if err != nil {
		return nil, fmt.Errorf("transit function: %w", err)
	}
	fn.PWT = t.PWT
	return fn, nil
}

// Simulate runs a scenario against the templates without a bus. Each cycle
// the pose is mailed to the helm, obstacles within alert range are reported,
// and ownship steers to the best point of the emitted functions combined with
// the transit preference. onRow, when set, sees every row as it is produced.
func Simulate(ctx context.Context, sc *Scenario, ts *config.Templates, logger *slog.Logger, onRow func(SimRow)) (*SimResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	helm, err := NewHelm(ts.Vehicle, ts, logger)
	if err != nil {
		return nil, err
	}
	domain, err := helm.Domain().SubDomain("course", "speed")
	if err != nil {
		return nil, fmt.Errorf("simulation needs course and speed axes: %w", err)
	}
	transit, err := transitFunction(domain, sc.Transit)
	if err != nil {
		return nil, err
	}

	info := helm.Info()
	for k, v := range sc.Mail {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			info.SetNum(k, f)
		} else {
			info.SetString(k, v)
		}
	}

	provider := spatial.StaticProvider{}
	appear := make(map[string]int, len(sc.Obstacles))
	for _, o := range sc.Obstacles {
		poly, _, _, _ := spatial.ParsePolygon(o.Poly)
		provider[o.ID] = poly
		appear[o.ID] = o.AppearAt
	}
	alerted := make(map[string]bool)

	res := &SimResult{}
	pose := sc.Start
	now := time.Unix(0, 0).UTC()
	step := time.Duration(sc.DT * float64(time.Second))
	helm.Start()

	for i := 1; i <= sc.Cycles; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		info.SetNum("NAV_X", pose.X)
		info.SetNum("NAV_Y", pose.Y)
		info.SetNum("NAV_HEADING", pose.Heading)
		info.SetNum("NAV_SPEED", pose.Speed)

		visible, err := provider.Obstacles(ctx)
		if err != nil {
			return res, err
		}
		if ts.AlertRange > 0 {
			visible = spatial.FilterByScope(visible, spatial.NewAlertScope(spatial.Point{X: pose.X, Y: pose.Y}, ts.AlertRange))
		}
		ids := make([]string, 0, len(visible))
		for id := range visible {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if alerted[id] || i < appear[id] {
				continue
			}
			spec := spatial.FormatPolygon(visible[id], id)
			if _, err := helm.Spawn(Alert{ID: id, Poly: spec}, now); err != nil {
				logger.Warn("obstacle not spawned", "obstacle", id, "error", err)
				continue
			}
			alerted[id] = true
		}

		out := helm.Cycle(now)
		fns := []*ivp.Function{transit}
		for _, r := range out.Results {
			if r.Function != nil {
				fns = append(fns, r.Function)
			}
		}
		vals, _ := ivp.Solve(fns...)
		if len(vals) == 2 {
			pose.Heading, pose.Speed = vals[0], vals[1]
		}
		pose.X, pose.Y = angle.Project(pose.X, pose.Y, pose.Heading, pose.Speed*sc.DT)

		row := SimRow{
			Cycle:     i,
			Pose:      pose,
			Behaviors: helm.Snapshot(),
			Decision:  out.Decision,
			Events:    out.Events,
			Warnings:  out.Warnings,
		}
		res.Rows = append(res.Rows, row)
		res.Records = append(res.Records, out.Finished...)
		if onRow != nil {
			onRow(row)
		}
		now = now.Add(step)
	}
	return res, nil
}
