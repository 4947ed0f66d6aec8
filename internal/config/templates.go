// internal/config/templates.go

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/ivp"
	"avoidance-core/internal/schema"
)

// Template is one configured behavior. Spawn templates are instantiated per
// obstacle track; static ones run as configured.
type Template struct {
	Type       string           `yaml:"type" json:"type" validate:"required,oneof=BHV_AvoidObstacleV24"`
	Name       string           `yaml:"name" json:"name" validate:"required"`
	Templating string           `yaml:"templating,omitempty" json:"templating,omitempty" validate:"omitempty,oneof=spawn static"`
	Updates    string           `yaml:"updates,omitempty" json:"updates,omitempty"`
	Condition  string           `yaml:"condition,omitempty" json:"condition,omitempty"`
	Params     []behavior.Param `yaml:"params,omitempty" json:"params,omitempty" validate:"dive"`
}

// Spawn reports whether the template is instantiated per obstacle.
func (t Template) Spawn() bool { return t.Templating == "spawn" }

// BehaviorParams returns the parameters to configure a behavior from the
// template, header fields first.
func (t Template) BehaviorParams() []behavior.Param {
	params := []behavior.Param{{Name: "name", Value: t.Name}}
	if t.Templating != "" {
		params = append(params, behavior.Param{Name: "templating", Value: t.Templating})
	}
	if t.Updates != "" {
		params = append(params, behavior.Param{Name: "updates", Value: t.Updates})
	}
	return append(params, t.Params...)
}

// Templates is a vehicle's behavior file.
type Templates struct {
	Vehicle    string     `yaml:"vehicle" json:"vehicle" validate:"required"`
	Domain     string     `yaml:"domain" json:"domain" validate:"required"`
	AlertRange float64    `yaml:"alert_range,omitempty" json:"alert_range,omitempty" validate:"gte=0"`
	Behaviors  []Template `yaml:"behaviors" json:"behaviors" validate:"required,min=1,dive"`
}

// ParsedDomain returns the decision domain.
func (ts *Templates) ParsedDomain() (ivp.Domain, error) {
	return ivp.ParseDomain(ts.Domain)
}

// Find returns the template with the given name.
func (ts *Templates) Find(name string) (Template, bool) {
	for _, t := range ts.Behaviors {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

var validate = validator.New()

// Parse decodes a template document. When v is non-nil the raw document is
// checked against its schema before decoding.
func Parse(data []byte, v *schema.Validator) (*Templates, error) {
	if v != nil {
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
		if err := v.Validate(raw); err != nil {
			return nil, fmt.Errorf("templates: %w", err)
		}
	}

	var ts Templates
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if err := validate.Struct(&ts); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	if _, err := ts.ParsedDomain(); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	for _, t := range ts.Behaviors {
		if _, err := behavior.ParseCondition(t.Condition); err != nil {
			return nil, fmt.Errorf("templates: behavior %s: %w", t.Name, err)
		}
	}
	return &ts, nil
}

// Merge layers an override onto base. Behaviors matched by name take the
// override's non-empty header fields and get its params appended, so later
// values win. Unmatched override behaviors are added.
func Merge(base, override *Templates) *Templates {
	if override == nil {
		return base
	}
	out := *base
	out.Behaviors = make([]Template, len(base.Behaviors))
	for i, t := range base.Behaviors {
		t.Params = append([]behavior.Param(nil), t.Params...)
		out.Behaviors[i] = t
	}
	if override.Domain != "" {
		out.Domain = override.Domain
	}
	if override.AlertRange > 0 {
		out.AlertRange = override.AlertRange
	}

	for _, o := range override.Behaviors {
		idx := -1
		for i, t := range out.Behaviors {
			if t.Name == o.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			out.Behaviors = append(out.Behaviors, o)
			continue
		}
		t := &out.Behaviors[idx]
		if o.Templating != "" {
			t.Templating = o.Templating
		}
		if o.Updates != "" {
			t.Updates = o.Updates
		}
		if o.Condition != "" {
			t.Condition = o.Condition
		}
		t.Params = append(t.Params, o.Params...)
	}
	return &out
}

// parseOverride decodes an override document. Overrides may omit the
// required header fields, so only the YAML is checked.
func parseOverride(data []byte) (*Templates, error) {
	var ts Templates
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to parse override: %w", err)
	}
	return &ts, nil
}
