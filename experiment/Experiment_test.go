package experiment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/drivedqn/agent/deepq"
	"github.com/samuelfneumann/drivedqn/environment/envconfig"
	"github.com/samuelfneumann/drivedqn/experiment/tracker"
	"github.com/samuelfneumann/drivedqn/initwfn"
	"github.com/samuelfneumann/drivedqn/network"
	"github.com/samuelfneumann/drivedqn/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame is what a scriptedHost reports on a single frame
type frame struct {
	reward  float64
	timeout bool
	back    bool
	contact bool
}

// scriptedHost replays a fixed script of frames and records what the
// loop asks of it
type scriptedHost struct {
	script  []frame
	current int

	obs     []float64
	actions []int
	resets  int
	pending float64
}

// advance moves the host to its next scripted frame
func (h *scriptedHost) advance() {
	h.current++
	h.pending += h.script[h.current].reward
	h.obs = []float64{float64(h.current)}
}

func (h *scriptedHost) Observation() []float64 { return h.obs }

func (h *scriptedHost) Reward() float64 {
	r := h.pending
	h.pending = 0
	return r
}

func (h *scriptedHost) SetBotAction(a int) { h.actions = append(h.actions, a) }

func (h *scriptedHost) CheckTimeCounter() bool {
	return h.script[h.current].timeout
}

func (h *scriptedHost) CheckBackTriggerCounter() bool {
	return h.script[h.current].back
}

func (h *scriptedHost) CheckHasContact() bool {
	return h.script[h.current].contact
}

func (h *scriptedHost) Reset() { h.resets++ }

// call records a single call into the agent
type call struct {
	method string
	obs    []float64
	reward float64
	done   bool
}

// recordingAgent records every call and answers with fixed actions
type recordingAgent struct {
	calls []call
	err   error
	saves int
}

func (r *recordingAgent) Predict(obs []float64) (int, error) {
	r.calls = append(r.calls, call{method: "predict", obs: obs})
	if r.err != nil {
		return 0, r.err
	}
	return 7, nil
}

func (r *recordingAgent) OnTick(obs []float64, reward float64,
	done bool) (int, error) {
	r.calls = append(r.calls, call{"onTick", obs, reward, done})
	if r.err != nil {
		return 0, r.err
	}
	if obs == nil {
		return 0, nil
	}
	return 3, nil
}

func (r *recordingAgent) Save() error {
	r.saves++
	return nil
}

func TestHostLoopEpisode(t *testing.T) {
	host := &scriptedHost{
		script: []frame{
			{reward: 5},                  // stale reward before the episode
			{reward: 1},                  // forward trigger
			{reward: 0.5, timeout: true}, // timeout overrides the reward
			{reward: 0},                  // next episode begins
			{reward: -1, back: true},     // wrong way
		},
		obs:     []float64{0},
		pending: 5,
	}
	agent := &recordingAgent{}
	scores, err := tracker.NewScores(10, filepath.Join(t.TempDir(), "s"))
	require.NoError(t, err)
	returns := tracker.NewReturn(filepath.Join(t.TempDir(), "r"))

	loop := NewHostLoop(host, agent, scores, []tracker.Tracker{returns}, nil)

	require.NoError(t, loop.Tick())
	for i := 1; i < len(host.script); i++ {
		host.advance()
		require.NoError(t, loop.Tick())
	}

	want := []call{
		{method: "predict", obs: []float64{0}},
		{"onTick", []float64{1}, 1, false},
		{"onTick", nil, -1, true},
		{method: "predict", obs: []float64{3}},
		{"onTick", nil, -1.1, true},
	}
	require.Len(t, agent.calls, len(want))
	for i := range want {
		assert.Equal(t, want[i].method, agent.calls[i].method, "call %d", i)
		assert.Equal(t, want[i].obs, agent.calls[i].obs, "call %d", i)
		assert.InDelta(t, want[i].reward, agent.calls[i].reward, 1e-12,
			"call %d", i)
		assert.Equal(t, want[i].done, agent.calls[i].done, "call %d", i)
	}

	assert.Equal(t, []int{7, 3, 7}, host.actions)
	assert.Equal(t, 2, host.resets)
	assert.Equal(t, 2, loop.Games())
	assert.Equal(t, 5, loop.Ticks())

	// Scores leave out the terminal reward, episode returns include it
	require.Equal(t, 2, scores.Games())
	assert.InDeltaSlice(t, []float64{1, 0}, scores.Scores(), 1e-12)
	assert.InDeltaSlice(t, []float64{0, -1.1}, returns.Returns(), 1e-12)

	require.NoError(t, loop.Save())
	assert.Equal(t, 1, agent.saves)
}

func TestHostLoopAgentError(t *testing.T) {
	host := &scriptedHost{
		script: []frame{{}, {reward: 1}},
		obs:    []float64{0},
	}
	agent := &recordingAgent{err: errors.New("broken")}
	loop := NewHostLoop(host, agent, nil, nil, nil)

	err := loop.Tick()
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.err)

	host.advance()
	err = loop.Tick()
	require.Error(t, err)

	// The bot is given the fallback action each time
	assert.Equal(t, []int{0, 0}, host.actions)
}

func testConfig(t *testing.T, typ Type) Config {
	t.Helper()
	dir := t.TempDir()

	c, err := DefaultConfig()
	require.NoError(t, err)
	c.Type = typ
	c.MaxSteps = 400
	c.CheckpointEvery = 100
	c.ScoreFile = filepath.Join(dir, "scores.bin")
	c.ScoreWindow = 5

	c.EnvConf.Track.TimeLimit = 0.5
	c.EnvConf.FrameSkip = 2

	c.AgentConf.Layers = []int{16}
	c.AgentConf.Biases = []bool{true}
	c.AgentConf.Activations = []*network.Activation{network.ReLU()}
	c.AgentConf.ExpReplay.Capacity = 1000
	c.AgentConf.ExpReplay.BatchSize = 8
	c.AgentConf.Solver, err = solver.NewDefaultAdam(1e-3, 8)
	require.NoError(t, err)
	c.AgentConf.InitWFn, err = initwfn.NewGlorotU(1.0)
	require.NoError(t, err)
	c.AgentConf.CheckpointDir = filepath.Join(dir, "checkpoints")
	c.AgentConf.Restore = deepq.Never

	return c
}

func TestDefaultConfigValid(t *testing.T) {
	c, err := DefaultConfig()
	require.NoError(t, err)
	assert.NoError(t, c.Validate())
	assert.Equal(t, 29, c.AgentConf.Features)
	assert.Equal(t, 9, c.AgentConf.Actions)
}

func TestConfigValidate(t *testing.T) {
	c := testConfig(t, "Replay")
	c.MaxSteps = 0
	c.ScoreWindow = 0
	c.AgentConf.Features = 10

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown experiment type")
	assert.Contains(t, err.Error(), "max steps")
	assert.Contains(t, err.Error(), "score window")
	assert.Contains(t, err.Error(), "features")

	c = testConfig(t, DriveExp)
	c.EnvConf.Environment = envconfig.Gym
	assert.Error(t, c.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.json")
	data := []byte(`{"Type": "Online", "MaxSteps": 50, "ScoreWindow": 10}`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, OnlineExp, c.Type)
	assert.Equal(t, uint(50), c.MaxSteps)
	assert.Equal(t, 10, c.ScoreWindow)
	assert.Equal(t, 29, c.AgentConf.Features)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDrive(t *testing.T) {
	c := testConfig(t, DriveExp)
	lengths := tracker.NewEpisodeLength(filepath.Join(t.TempDir(), "len"))

	exp, agent, err := c.CreateExp(5, []tracker.Tracker{lengths}, nil)
	require.NoError(t, err)
	require.IsType(t, &Drive{}, exp)

	frames := 0
	exp.(*Drive).OnStep = func() { frames++ }
	require.NoError(t, exp.Run())

	assert.Equal(t, int(c.MaxSteps), frames)
	loop := exp.(*Drive).Loop()
	assert.Greater(t, loop.Games(), 0)
	assert.Len(t, lengths.Lengths(), loop.Games())
	assert.Equal(t, deepq.Warmed, agent.Stage())
	assert.Greater(t, agent.GradientSteps(), 0)

	// Checkpoints were written during the run
	_, err = os.Stat(agent.CheckpointPath())
	assert.NoError(t, err)

	require.NoError(t, exp.Save())
	scores, err := tracker.LoadData(c.ScoreFile)
	require.NoError(t, err)
	assert.Len(t, scores, loop.Games())
}

func TestOnline(t *testing.T) {
	c := testConfig(t, OnlineExp)
	returns := tracker.NewReturn(filepath.Join(t.TempDir(), "returns"))

	exp, agent, err := c.CreateExp(9, nil, nil)
	require.NoError(t, err)
	require.IsType(t, &Online{}, exp)
	exp.Register(returns)

	require.NoError(t, exp.Run())
	assert.Equal(t, c.MaxSteps, exp.(*Online).Steps())
	assert.Greater(t, len(returns.Returns()), 0)
	assert.Greater(t, agent.GradientSteps(), 0)
	assert.Less(t, agent.Epsilon(), c.AgentConf.Epsilon)

	require.NoError(t, exp.Save())
	_, err = os.Stat(agent.CheckpointPath())
	assert.NoError(t, err)
}
