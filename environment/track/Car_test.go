package track

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/drivedqn/environment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const (
	forward  = 7 // forward input 1, no steering
	backward = 1 // forward input -1, no steering
)

func newTestCar(t *testing.T, c Config) *Car {
	c.SpawnJitter = 0.0
	car, err := NewCar(c, 1)
	require.NoError(t, err)
	return car
}

func TestObservation(t *testing.T) {
	car := newTestCar(t, DefaultConfig())
	obs := car.Observation()
	require.Len(t, obs, 29)

	for i := 0; i < Rays; i++ {
		assert.GreaterOrEqual(t, obs[i], 0.0)
		assert.LessOrEqual(t, obs[i], 1.0)
	}

	// At rest
	for _, v := range obs[Rays : Rays+6] {
		assert.InDelta(t, 0.0, v, 1e-9)
	}

	// The next gate lies ahead of the car
	dir := obs[Rays+6:]
	assert.InDelta(t, 1.0, math.Hypot(dir[0], dir[1]), 1e-9)
	assert.Greater(t, dir[1], 0.0)
	assert.Equal(t, 0.0, dir[2])
}

func TestRaysSeeWalls(t *testing.T) {
	car := newTestCar(t, DefaultConfig())

	// Ray 0 points along the car's local x axis, across the road
	rays := car.Rays()
	assert.Less(t, rays[0], 1.0)
	assert.Less(t, rays[Rays/2], 1.0)
}

func TestDriveForwardCrossesGate(t *testing.T) {
	car := newTestCar(t, DefaultConfig())
	car.SetBotAction(forward)

	var total float64
	for i := 0; i < int(FPS); i++ {
		car.Tick()
		total += car.Reward()
	}

	assert.GreaterOrEqual(t, total, 1.0)
	assert.Greater(t, car.LastTrigger(), 0)
	assert.False(t, car.CheckTimeCounter())
	assert.False(t, car.CheckHasContact())
	assert.Greater(t, car.Speed()[1], 0.0)
}

func TestDriveBackwardPenalised(t *testing.T) {
	c := DefaultConfig()
	c.BackTriggerLimit = 1
	car := newTestCar(t, c)
	car.SetBotAction(backward)

	var total float64
	for i := 0; i < int(FPS) && !car.CheckBackTriggerCounter(); i++ {
		car.Tick()
		total += car.Reward()
	}

	assert.True(t, car.CheckBackTriggerCounter())
	assert.Equal(t, -1.0, total)
	assert.Equal(t, c.Triggers-1, car.LastTrigger())

	r, reason := environment.Terminate(car, total)
	assert.Equal(t, environment.WrongWay, reason)
	assert.InDelta(t, -1.1, r, 1e-12)
}

func TestTimeout(t *testing.T) {
	car := newTestCar(t, DefaultConfig())

	frames := int(TimeLimit * FPS)
	for i := 0; i < frames-1; i++ {
		car.Tick()
	}
	assert.False(t, car.CheckTimeCounter())

	car.Tick()
	car.Tick()
	assert.True(t, car.CheckTimeCounter())

	r, reason := environment.Terminate(car, car.Reward())
	assert.Equal(t, environment.Timeout, reason)
	assert.Equal(t, -1.0, r)
}

func TestWallContact(t *testing.T) {
	car := newTestCar(t, DefaultConfig())

	// Face the outer wall from inside the road
	car.body.SetTransform(box2d.MakeB2Vec2(OuterA-4.0, car.spawn[1]), -math.Pi/2)
	car.SetBotAction(forward)
	for i := 0; i < int(FPS) && !car.CheckHasContact(); i++ {
		car.Tick()
	}
	assert.True(t, car.CheckHasContact())

	car.Reset()
	assert.False(t, car.CheckHasContact())
	assert.Equal(t, NoOp, car.Action())
	assert.Equal(t, 0, car.Frame())
	assert.Equal(t, 0.0, car.Reward())
}

func TestSetBotActionPanics(t *testing.T) {
	car := newTestCar(t, DefaultConfig())
	assert.Panics(t, func() { car.SetBotAction(9) })
	assert.Panics(t, func() { car.SetBotAction(-1) })
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	assert.NoError(t, c.Validate())

	c.Triggers = 0
	c.OuterA = 1.0
	c.FPS = 0
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "triggers")
	assert.Contains(t, err.Error(), "outer wall")
	assert.Contains(t, err.Error(), "fps")

	_, err = NewCar(c, 0)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	car := newTestCar(t, DefaultConfig())
	filename := filepath.Join(t.TempDir(), "track.png")

	require.NoError(t, car.Render(filename))
	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestEnv(t *testing.T) {
	env, step, err := NewEnv(DefaultConfig(), 4, 0, 0.99, 3)
	require.NoError(t, err)
	assert.True(t, step.First())
	assert.Equal(t, 29, step.Observation.Len())

	n, err := env.ActionSpec().Actions()
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, 29, env.ObservationSpec().Features())

	_, _, err = env.Step(mat.NewVecDense(1, []float64{9}))
	assert.Error(t, err)

	// Standing still runs out the clock
	var last bool
	steps := 0
	for !last {
		step, last, err = env.Step(mat.NewVecDense(1, []float64{NoOp}))
		require.NoError(t, err)
		steps++
	}
	assert.Equal(t, environment.Timeout, env.Termination())
	assert.Equal(t, -1.0, step.Reward)
	assert.Equal(t, steps, step.Number)

	step, err = env.Reset()
	require.NoError(t, err)
	assert.True(t, step.First())
	assert.Equal(t, environment.NotTerminated, env.Termination())
}

func TestEnvStepLimit(t *testing.T) {
	env, _, err := NewEnv(DefaultConfig(), 1, 5, 0.99, 3)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		step, last, err := env.Step(mat.NewVecDense(1, []float64{NoOp}))
		require.NoError(t, err)
		assert.Equal(t, i == 5, last)
		assert.Equal(t, i, step.Number)
	}
}
