// internal/behavior/behavior.go

// Package behavior holds the helm behaviors and the driver that steps them
// once per control cycle. Each behavior owns its state exclusively and is
// stepped from a single goroutine.
package behavior

import (
	"errors"
	"fmt"

	"avoidance-core/internal/ivp"
)

// State is where a behavior sits in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// Behavior is the capability set the driver needs. Variants of a behavior
// are separate implementations of this interface.
type Behavior interface {
	// Name is the behavior's descriptor.
	Name() string
	// SetParam applies one configuration parameter.
	SetParam(param, val string) error
	// OnSetParamComplete runs once the initial parameters are applied.
	OnSetParamComplete()
	// OnHelmStart runs once, before the first cycle.
	OnHelmStart()
	// OnEveryState runs first in every cycle, whatever the state.
	OnEveryState(state State)
	// OnIdle runs in cycles where the behavior is not allowed to run.
	OnIdle()
	// OnIdleToRun runs on the cycle the behavior becomes active.
	OnIdleToRun()
	// OnRun runs in active cycles and may return a decision function.
	OnRun() *ivp.Function
	// OnComplete runs once, on the cycle the behavior completes.
	OnComplete()
	// Completed reports whether the behavior has finished.
	Completed() bool
	// Drain returns and clears the posts made since the last drain.
	Drain() []Post
}

// Result is the output of one cycle for one behavior.
type Result struct {
	Name     string
	State    State
	Function *ivp.Function
	Posts    []Post
}

// Param is one name/value configuration entry.
type Param struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Value string `yaml:"value" json:"value"`
}

// Configure applies params in order and then completes configuration. Every
// rejected parameter is reported; accepted ones stay applied.
func Configure(b Behavior, params []Param) error {
	var errs []error
	for _, p := range params {
		if err := b.SetParam(p.Name, p.Value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		}
	}
	b.OnSetParamComplete()
	return errors.Join(errs...)
}
