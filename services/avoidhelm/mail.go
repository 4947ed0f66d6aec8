package avoidhelm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/eventbus"
	"avoidance-core/internal/metrics"
	"avoidance-core/internal/schema"
)

const defaultResolvedVar = "OBM_RESOLVED"

// navVars maps nav report payload fields onto info buffer variables.
var navVars = map[string]string{
	"x":       "NAV_X",
	"y":       "NAV_Y",
	"heading": "NAV_HEADING",
	"speed":   "NAV_SPEED",
}

// Apply hands one piece of mail to the helm. Obstacle alerts are checked
// against alerts when it is non-nil.
func (h *Helm) Apply(ev eventbus.Event, alerts *schema.Validator, now time.Time) error {
	switch ev.EventType {
	case eventbus.TypeNavReport:
		for field, v := range navVars {
			if f, ok := ev.Float(field); ok {
				h.info.SetNum(v, f)
			}
		}
		metrics.MailApplied.WithLabelValues(h.vehicle, "nav").Inc()
		return nil

	case eventbus.TypeObstacleAlert:
		if alerts != nil {
			if err := alerts.Validate(ev.Payload); err != nil {
				return fmt.Errorf("obstacle alert: %w", err)
			}
		}
		a, err := alertFromPayload(ev.Payload)
		if err != nil {
			return err
		}
		metrics.MailApplied.WithLabelValues(h.vehicle, "alert").Inc()
		_, err = h.Spawn(a, now)
		return err

	case eventbus.TypeObstacleResolved:
		ids := stringList(ev.Payload["ids"])
		if len(ids) == 0 {
			return fmt.Errorf("obstacle resolved: no ids")
		}
		v := ev.String("var")
		if v == "" {
			v = defaultResolvedVar
		}
		h.info.SetString(v, strings.Join(ids, ","))
		metrics.MailApplied.WithLabelValues(h.vehicle, "resolved").Inc()
		return nil

	case eventbus.TypeHelmMail:
		v := ev.String("var")
		if v == "" || strings.ContainsAny(v, " \t") {
			return fmt.Errorf("helm mail: bad variable %q", v)
		}
		if f, ok := ev.Float("value"); ok {
			h.info.SetNum(v, f)
		} else {
			h.info.SetString(v, formatValue(ev.Payload["value"]))
		}
		metrics.MailApplied.WithLabelValues(h.vehicle, "var").Inc()
		return nil
	}
	return fmt.Errorf("unsupported mail type %q", ev.EventType)
}

func alertFromPayload(p map[string]any) (Alert, error) {
	id, _ := p["id"].(string)
	poly, _ := p["poly"].(string)
	if id == "" || poly == "" {
		return Alert{}, fmt.Errorf("obstacle alert: id and poly are required")
	}
	a := Alert{ID: id, Poly: poly}
	a.Template, _ = p["template"].(string)
	if params, ok := p["params"].(map[string]any); ok {
		names := make([]string, 0, len(params))
		for k := range params {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			a.Params = append(a.Params, behavior.Param{Name: k, Value: formatValue(params[k])})
		}
	}
	return a, nil
}

func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, x := range t {
			if s := strings.TrimSpace(formatValue(x)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return behavior.FormatNum(t, 6)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
