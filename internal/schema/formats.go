// Package schema defines the custom JSON Schema formats used by behavior
// templates and obstacle mail.
package schema

import (
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"avoidance-core/internal/ivp"
	"avoidance-core/internal/spatial"
)

var obstacleIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// eventIDFormatChecker implements gojsonschema.FormatChecker for event_id.
type eventIDFormatChecker struct{}

// IsFormat validates that the input is a valid UUID.
func (c eventIDFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		_, err := uuid.Parse(s)
		return err == nil
	}
	return false
}

// obstacleIDFormatChecker accepts track ids and behavior names: letters,
// digits, dots, hyphens and underscores.
type obstacleIDFormatChecker struct{}

func (c obstacleIDFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	return ok && obstacleIDPattern.MatchString(s)
}

// polygonSpecFormatChecker accepts "pts={...},label=..." strings describing a
// convex polygon.
type polygonSpecFormatChecker struct{}

func (c polygonSpecFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	poly, _, _, err := spatial.ParsePolygon(s)
	return err == nil && len(poly) >= 3 && poly.IsConvex()
}

// domainFormatChecker accepts "name,low,high,points:..." decision domains.
type domainFormatChecker struct{}

func (c domainFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	_, err := ivp.ParseDomain(s)
	return err == nil
}

var registerOnce sync.Once

// RegisterCustomFormats registers event_id, obstacle_id, polygon_spec and
// ivp_domain. It is safe to call more than once.
func RegisterCustomFormats() {
	registerOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("event_id", eventIDFormatChecker{})
		gojsonschema.FormatCheckers.Add("obstacle_id", obstacleIDFormatChecker{})
		gojsonschema.FormatCheckers.Add("polygon_spec", polygonSpecFormatChecker{})
		gojsonschema.FormatCheckers.Add("ivp_domain", domainFormatChecker{})
	})
}
