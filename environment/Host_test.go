package environment

import (
	"testing"

	ts "github.com/samuelfneumann/drivedqn/timestep"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// scriptedHost answers the termination queries with fixed values
type scriptedHost struct {
	timeout, back, contact bool
}

func (s scriptedHost) Observation() []float64        { return nil }
func (s scriptedHost) Reward() float64               { return 0 }
func (s scriptedHost) SetBotAction(int)              {}
func (s scriptedHost) CheckTimeCounter() bool        { return s.timeout }
func (s scriptedHost) CheckBackTriggerCounter() bool { return s.back }
func (s scriptedHost) CheckHasContact() bool         { return s.contact }
func (s scriptedHost) Reset()                        {}

func TestTerminate(t *testing.T) {
	tests := []struct {
		name   string
		host   scriptedHost
		reward float64
		want   float64
		reason Termination
	}{
		{"running", scriptedHost{}, 1.0, 1.0, NotTerminated},
		{"timeout", scriptedHost{timeout: true}, 1.0, -1.0, Timeout},
		{"wrong way", scriptedHost{back: true}, -1.0, -1.1, WrongWay},
		{"crash", scriptedHost{contact: true}, 0.0, -0.1, Crash},
		{"timeout wins", scriptedHost{true, true, true}, 1.0, -1.0, Timeout},
		{"wrong way before crash", scriptedHost{false, true, true}, 0.0,
			-0.1, WrongWay},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r, reason := Terminate(test.host, test.reward)
			assert.InDelta(t, test.want, r, 1e-12)
			assert.Equal(t, test.reason, reason)
		})
	}
}

func TestStepLimit(t *testing.T) {
	ender := NewStepLimit(3)
	step := ts.New(ts.Mid, 0, 1, mat.NewVecDense(1, nil), 2)
	assert.False(t, ender.End(&step))
	assert.Equal(t, ts.Mid, step.StepType)

	step.Number = 3
	assert.True(t, ender.End(&step))
	assert.True(t, step.Last())

	step = ts.New(ts.Mid, 0, 1, mat.NewVecDense(1, nil), 1000)
	assert.False(t, NewStepLimit(0).End(&step))
}

func TestSpecActions(t *testing.T) {
	n, err := NewDiscreteActionSpec(9).Actions()
	assert.NoError(t, err)
	assert.Equal(t, 9, n)

	obs := NewSpec(mat.NewVecDense(29, nil), Observation,
		mat.NewVecDense(29, nil), mat.NewVecDense(29, nil), Continuous)
	_, err = obs.Actions()
	assert.Error(t, err)
	assert.Equal(t, 29, obs.Features())
}
