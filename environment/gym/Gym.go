//go:build gym

// Package gym provides access to OpenAI Gym environments, such as
// LunarLander-v2, through the Go bindings for OpenAI Gym found at
// https://github.com/samuelfneumann/GoGym.
//
// GoGym embeds a Python interpreter, so this package is only compiled
// with the gym build tag. Importing it registers the Gym environment
// with package envconfig.
package gym

import (
	"fmt"

	"github.com/samuelfneumann/drivedqn/environment"
	"github.com/samuelfneumann/drivedqn/environment/envconfig"
	ts "github.com/samuelfneumann/drivedqn/timestep"
	"github.com/samuelfneumann/gogym"
	"gonum.org/v1/gonum/mat"
)

func init() {
	envconfig.Register(envconfig.Gym, func(c envconfig.Config,
		seed uint64) (environment.Environment, ts.TimeStep, error) {
		e, step, err := New(c.GymName, c.Discount, seed)
		if err != nil {
			return nil, ts.TimeStep{}, err
		}
		return e, step, nil
	})
}

// GymEnv implements access to an OpenAI Gym environment using GoGym
type GymEnv struct {
	gogym.Environment

	currentStep ts.TimeStep
	discount    float64
}

// New returns a new GymEnv with the given name, which must be a legal
// name from the OpenAI Gym suite.
func New(name string, discount float64, seed uint64) (*GymEnv,
	ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment: %v", err)
	}

	goGymEnv.Seed(int(seed))
	gymEnv := &GymEnv{
		Environment: goGymEnv,
		discount:    discount,
	}

	t, err := gymEnv.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return gymEnv, t, nil
}

// Step takes a single environmental step
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %v", err)
	}

	t := ts.New(ts.Mid, reward, g.discount, obs, g.currentStep.Number+1)
	if done {
		t.StepType = ts.Last
	}
	g.currentStep = t

	return t, done, nil
}

// Reset resets the environment to some starting state
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	obs, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %v", err)
	}

	t := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (g *GymEnv) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// space is a bounded GoGym space
type space interface {
	Low() []*mat.VecDense
	High() []*mat.VecDense
}

// spec converts a GoGym space to a Spec of type t
func spec(s space, t environment.SpecType) environment.Spec {
	var cardinality environment.Cardinality
	switch s.(type) {
	case *gogym.BoxSpace:
		cardinality = environment.Continuous
	case *gogym.DiscreteSpace:
		cardinality = environment.Discrete
	default:
		panic("spec: invalid space type, package gym supports only " +
			"GoGym's BoxSpace or DiscreteSpace")
	}

	low := s.Low()[0]
	high := s.High()[0]
	shape := mat.NewVecDense(low.Len(), nil)

	return environment.NewSpec(shape, t, low, high, cardinality)
}

// ObservationSpec returns the observation spec of the environment
func (g *GymEnv) ObservationSpec() environment.Spec {
	return spec(g.ObservationSpace(), environment.Observation)
}

// ActionSpec returns the action specification of the environment
func (g *GymEnv) ActionSpec() environment.Spec {
	return spec(g.ActionSpace(), environment.Action)
}

// DiscountSpec returns the discount specification of the environment
func (g *GymEnv) DiscountSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	low := mat.NewVecDense(1, []float64{g.discount})

	return environment.NewSpec(shape, environment.Discount, low, low,
		environment.Continuous)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (g *GymEnv) Close() error {
	g.Environment.Close()
	return nil
}

// Shutdown releases the embedded Python interpreter. No Gym environment
// may be used afterwards.
func Shutdown() {
	gogym.Close()
}
