// Package environment outlines the interfaces through which an agent
// drives, or is driven by, a simulated vehicle.
//
// Two styles of interaction are supported. An Environment is pulled: a
// loop owned by the caller resets it and steps it with actions. A Host
// pushes: a game engine owns the loop, and once per frame the caller
// queries the Host for an observation and reward, decides whether the
// episode is over, and tells the Host which action its bot should take.
package environment

import (
	ts "github.com/samuelfneumann/drivedqn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Environment implements a simulated environment that is stepped by
// the caller
type Environment interface {
	// Reset resets the environment between episodes and returns the
	// first step of the next episode
	Reset() (ts.TimeStep, error)

	// Step takes the action and returns the next step along with
	// whether the episode ended
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)

	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
}

// Closer is an Environment that holds resources that must be released
type Closer interface {
	Environment
	Close() error
}

// Ender determines when episodes should end
type Ender interface {
	// End returns whether the episode should end at the argument
	// timestep, setting its StepType to timestep.Last if so
	End(*ts.TimeStep) bool
}
