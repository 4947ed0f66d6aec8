package avoidhelm

import (
	"context"
	"encoding/json"
	"log/slog"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/encounter"
	"avoidance-core/internal/eventbus"
	"avoidance-core/internal/metrics"
)

const source = "avoidhelm"

// Broadcaster fans a message out to live viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Outputs turns cycle results into bus events, viewer messages and archived
// encounters. Posts repeating the last value under the same key are dropped
// unless marked repeatable. A behavior's keys are forgotten once its
// encounter finishes.
type Outputs struct {
	vehicle  string
	bus      eventbus.Publisher
	recorder encounter.Recorder
	visuals  Broadcaster
	logger   *slog.Logger
	last     map[string]string
	owned    map[string][]string
}

func NewOutputs(vehicle string, bus eventbus.Publisher, recorder encounter.Recorder, visuals Broadcaster, logger *slog.Logger) *Outputs {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = encounter.Discard{}
	}
	return &Outputs{
		vehicle:  vehicle,
		bus:      bus,
		recorder: recorder,
		visuals:  visuals,
		logger:   logger,
		last:     make(map[string]string),
		owned:    make(map[string][]string),
	}
}

// fresh applies the duplicate filter.
func (o *Outputs) fresh(name string, p behavior.Post) bool {
	if p.Key == behavior.KeyRepeatable {
		return true
	}
	val := p.String()
	prev, ok := o.last[p.Key]
	if ok && prev == val {
		return false
	}
	if !ok {
		o.owned[name] = append(o.owned[name], p.Key)
	}
	o.last[p.Key] = val
	return true
}

// forget drops the duplicate filter state of a retired behavior.
func (o *Outputs) forget(name string) {
	for _, k := range o.owned[name] {
		delete(o.last, k)
	}
	delete(o.owned, name)
}

// Posts publishes the posts of a set of results.
func (o *Outputs) Posts(ctx context.Context, iteration int, results []behavior.Result) {
	for _, res := range results {
		for _, p := range res.Posts {
			if !o.fresh(res.Name, p) {
				continue
			}
			payload := map[string]any{
				"var":       p.Var,
				"value":     p.String(),
				"behavior":  res.Name,
				"iteration": iteration,
			}
			if p.IsNum {
				payload["num"] = p.Num
			}
			topic, typ := eventbus.TopicHelmPosts, eventbus.TypeHelmPost
			if p.Var == "BHV_WARNING" {
				topic, typ = eventbus.TopicHelmWarnings, eventbus.TypeHelmWarning
			}
			o.publish(ctx, topic, eventbus.NewEvent(typ, source, o.vehicle, payload))

			if p.Var == "VIEW_POLYGON" && o.visuals != nil {
				msg, err := json.Marshal(payload)
				if err == nil {
					o.visuals.Broadcast(msg)
				}
			}
		}
	}
}

// Publish emits everything one cycle produced.
func (o *Outputs) Publish(ctx context.Context, out CycleOutput) {
	o.Posts(ctx, out.Iteration, out.Results)

	for _, res := range out.Results {
		if res.Function == nil {
			continue
		}
		payload := map[string]any{
			"behavior":  res.Name,
			"pwt":       res.Function.PWT,
			"pieces":    len(res.Function.Pieces),
			"iteration": out.Iteration,
		}
		if best, val, ok := res.Function.Best(); ok {
			payload["best"] = best
			payload["best_utility"] = val
		}
		o.publish(ctx, eventbus.TopicHelmFunctions, eventbus.NewEvent(eventbus.TypeHelmFunction, source, o.vehicle, payload))
	}
	if out.Decision != nil {
		o.publish(ctx, eventbus.TopicHelmFunctions, eventbus.NewEvent(eventbus.TypeHelmFunction, source, o.vehicle, map[string]any{
			"decision":  out.Decision.Values,
			"utility":   out.Decision.Utility,
			"sources":   out.Decision.Sources,
			"iteration": out.Iteration,
		}))
	}

	for _, ev := range out.Events {
		e := eventbus.NewEvent(eventbus.TypeEncounter+ev.Kind, source, o.vehicle, map[string]any{
			"behavior": ev.Behavior,
			"range":    ev.Range,
		})
		if ev.ObstacleID != "" {
			e = e.WithTrack(ev.ObstacleID)
		}
		o.publish(ctx, eventbus.TopicEncounters, e)
	}

	for _, rec := range out.Finished {
		o.forget(rec.Behavior)
		if err := o.recorder.Record(ctx, rec); err != nil {
			metrics.PublishErrors.WithLabelValues(o.vehicle, "recorder").Inc()
			o.logger.Warn("encounter not recorded", "encounter", rec.ID, "error", err)
		}
		e := eventbus.NewEvent(eventbus.TypeEncounter+"summary", source, o.vehicle, map[string]any{
			"encounter_id":  rec.ID,
			"behavior":      rec.Behavior,
			"min_range":     rec.MinRange,
			"cpa_events":    rec.CPAEvents,
			"max_relevance": rec.MaxRelevance,
			"side_locked":   rec.SideLocked,
			"cycles":        rec.Cycles,
		})
		if key := rec.ObstacleKey(); key != "" {
			e = e.WithTrack(key)
		}
		o.publish(ctx, eventbus.TopicEncounters, e)
	}
}

func (o *Outputs) publish(ctx context.Context, topic string, ev eventbus.Event) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, topic, ev); err != nil {
		metrics.PublishErrors.WithLabelValues(o.vehicle, topic).Inc()
		o.logger.Warn("publish failed", "topic", topic, "type", ev.EventType, "error", err)
	}
}
