// internal/behavior/driver.go

package behavior

// Driver steps one behavior through its lifecycle. Whether the behavior may
// run in a cycle is decided outside; completion is decided by the behavior.
type Driver struct {
	bhv     Behavior
	state   State
	started bool
}

// NewDriver wraps a configured behavior. The behavior starts idle.
func NewDriver(b Behavior) *Driver {
	return &Driver{bhv: b, state: StateIdle}
}

// Behavior returns the driven behavior.
func (d *Driver) Behavior() Behavior { return d.bhv }

// State is the state after the last step.
func (d *Driver) State() State { return d.state }

// Step runs one cycle. A completed behavior is not stepped again.
func (d *Driver) Step(runnable bool) Result {
	res := Result{Name: d.bhv.Name()}
	if !d.started {
		d.bhv.OnHelmStart()
		d.started = true
	}
	if d.state == StateComplete {
		res.State = d.state
		res.Posts = d.bhv.Drain()
		return res
	}

	d.bhv.OnEveryState(d.state)
	if !d.bhv.Completed() {
		if runnable {
			if d.state != StateRunning {
				d.bhv.OnIdleToRun()
				d.state = StateRunning
			}
			res.Function = d.bhv.OnRun()
		} else {
			d.state = StateIdle
			d.bhv.OnIdle()
		}
	}
	if d.bhv.Completed() {
		d.state = StateComplete
		d.bhv.OnComplete()
		res.Function = nil
	}

	res.State = d.state
	res.Posts = d.bhv.Drain()
	return res
}
