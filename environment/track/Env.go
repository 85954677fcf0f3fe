package track

import (
	"fmt"

	"github.com/samuelfneumann/drivedqn/environment"
	ts "github.com/samuelfneumann/drivedqn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Env wraps a Car to implement environment.Environment. Each call to
// Step holds the action for FrameSkip frames and ends the episode by
// the same rules a game engine applies to its bot.
type Env struct {
	*Car
	environment.Ender

	FrameSkip int

	discount    float64
	prevStep    ts.TimeStep
	termination environment.Termination
}

// NewEnv returns a new track environment. An episodeSteps < 1 never
// cuts episodes off by length.
func NewEnv(c Config, frameSkip, episodeSteps int, discount float64,
	seed uint64) (*Env, ts.TimeStep, error) {
	if frameSkip < 1 {
		return nil, ts.TimeStep{}, fmt.Errorf("newEnv: frame skip must be "+
			">= 1, got %v", frameSkip)
	}

	car, err := NewCar(c, seed)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newEnv: %v", err)
	}

	e := &Env{
		Car:       car,
		Ender:     environment.NewStepLimit(episodeSteps),
		FrameSkip: frameSkip,
		discount:  discount,
	}
	step, err := e.Reset()
	return e, step, err
}

// Reset respawns the car and returns the first step of the episode
func (e *Env) Reset() (ts.TimeStep, error) {
	e.Car.Reset()
	e.termination = environment.NotTerminated

	obs := mat.NewVecDense(e.Features(), e.Observation())
	e.prevStep = ts.New(ts.First, 0.0, e.discount, obs, 0)
	return e.prevStep, nil
}

// Step takes a single environmental step
func (e *Env) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != 1 {
		return ts.TimeStep{}, false, fmt.Errorf("step: actions should be "+
			"1-dimensional, got %v", action.Len())
	}
	a := int(action.AtVec(0))
	if a < 0 || a >= e.Actions() {
		return ts.TimeStep{}, false, fmt.Errorf("step: illegal action "+
			"selection, expected action ϵ [0, %v), received action = %v",
			e.Actions(), a)
	}

	e.SetBotAction(a)
	for i := 0; i < e.FrameSkip; i++ {
		e.Tick()
	}

	reward, reason := environment.Terminate(e.Car, e.Reward())
	e.termination = reason

	obs := mat.NewVecDense(e.Features(), e.Observation())
	t := ts.New(ts.Mid, reward, e.discount, obs, e.prevStep.Number+1)
	if reason != environment.NotTerminated {
		t.StepType = ts.Last
	} else {
		e.End(&t)
	}

	e.prevStep = t
	return t, t.Last(), nil
}

// Termination returns why the last episode ended
func (e *Env) Termination() environment.Termination {
	return e.termination
}

// CurrentTimeStep returns the last step taken in the environment
func (e *Env) CurrentTimeStep() ts.TimeStep {
	return e.prevStep
}

// ObservationSpec returns the observation specification of the
// environment
func (e *Env) ObservationSpec() environment.Spec {
	features := e.Features()
	shape := mat.NewVecDense(features, nil)

	lower := make([]float64, features)
	upper := make([]float64, features)
	for i := 0; i < e.Config.Rays; i++ {
		upper[i] = 1.0
	}
	for i := e.Config.Rays; i < features; i++ {
		lower[i] = -1.0
		upper[i] = 1.0
	}

	return environment.NewSpec(shape, environment.Observation,
		mat.NewVecDense(features, lower), mat.NewVecDense(features, upper),
		environment.Continuous)
}

// ActionSpec returns the action specification of the environment
func (e *Env) ActionSpec() environment.Spec {
	return environment.NewDiscreteActionSpec(e.Actions())
}

// DiscountSpec returns the discount specification of the environment
func (e *Env) DiscountSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{e.discount})

	return environment.NewSpec(shape, environment.Discount, bound, bound,
		environment.Continuous)
}
