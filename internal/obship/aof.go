// internal/obship/aof.go

package obship

import (
	"errors"

	"avoidance-core/internal/ivp"
)

// AOF exposes a model as an objective over a course/speed domain.
type AOF struct {
	model  *Model
	domain ivp.Domain
	crsIx  int
	spdIx  int
}

// NewAOF binds a model to a domain.
func NewAOF(model *Model, domain ivp.Domain) *AOF {
	return &AOF{
		model:  model,
		domain: domain,
		crsIx:  domain.Index("course"),
		spdIx:  domain.Index("speed"),
	}
}

// Initialize checks that the domain and model can produce utilities.
func (a *AOF) Initialize() error {
	var errs []error
	if a.crsIx < 0 {
		errs = append(errs, errors.New("no course variable in the domain"))
	}
	if a.spdIx < 0 {
		errs = append(errs, errors.New("no speed variable in the domain"))
	}
	if a.model == nil {
		return errors.Join(append(errs, errors.New("no obstacle model"))...)
	}
	for _, p := range []string{"osx", "osy", "osh"} {
		if !a.model.ParamIsSet(p) {
			errs = append(errs, errors.New(p+" is not set"))
		}
	}
	for _, p := range []string{"min_util_cpa", "max_util_cpa", "allowable_ttc"} {
		if !a.model.ParamIsSet(p) {
			errs = append(errs, errors.New(p+" is not set"))
		}
	}
	if !a.model.gut.IsConvex() {
		errs = append(errs, ErrNotConvex)
	} else if a.model.OwnshipInGutPoly() {
		errs = append(errs, errors.New("obstacle contains ownship position"))
	}
	return errors.Join(errs...)
}

// Eval returns the utility of the course and speed in vals.
func (a *AOF) Eval(vals []float64) float64 {
	return a.model.EvalHdgSpd(vals[a.crsIx], vals[a.spdIx])
}
