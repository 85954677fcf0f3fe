package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/samuelfneumann/drivedqn/agent/deepq"
	"github.com/samuelfneumann/drivedqn/initwfn"
	"github.com/samuelfneumann/drivedqn/network"
	"github.com/samuelfneumann/drivedqn/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgent records the calls made through the bridge
type stubAgent struct {
	predicted [][]float64
	ticks     []LearnRequest
	obs       [][]float64
	saves     int
	err       error
	fatal     error
}

func (s *stubAgent) Predict(obs []float64) (int, error) {
	s.predicted = append(s.predicted, obs)
	if s.err != nil {
		return 4, s.err
	}
	return 2, nil
}

func (s *stubAgent) OnTick(obs []float64, reward float64,
	done bool) (int, error) {
	s.obs = append(s.obs, obs)
	s.ticks = append(s.ticks, LearnRequest{
		Reward: float32(reward),
		Done:   done,
	})
	if s.err != nil {
		return 4, s.err
	}
	return 6, nil
}

func (s *stubAgent) Save() error {
	s.saves++
	return s.err
}

func (s *stubAgent) Epsilon() float64 { return 0.25 }
func (s *stubAgent) Stage() deepq.Stage { return deepq.Warmed }
func (s *stubAgent) GradientSteps() int { return 12 }
func (s *stubAgent) Err() error { return s.fatal }

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) ActionResponse {
	t.Helper()
	var resp ActionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPredict(t *testing.T) {
	agent := &stubAgent{}
	s := New(agent)

	w := do(t, s, http.MethodPost, "/predict", `{"observation": [0.5, 1, -1]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeAction(t, w).Action)
	require.Len(t, agent.predicted, 1)
	assert.Equal(t, []float64{0.5, 1, -1}, agent.predicted[0])

	w = do(t, s, http.MethodPost, "/predict", `{"observation": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/predict", `{"observation": "fast"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, agent.predicted, 1)
}

func TestLearn(t *testing.T) {
	agent := &stubAgent{}
	s := New(agent)

	w := do(t, s, http.MethodPost, "/learn",
		`{"observation": [0.25], "reward": 1, "done": false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, decodeAction(t, w).Action)

	w = do(t, s, http.MethodPost, "/learn",
		`{"observation": null, "reward": -1.1, "done": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, agent.ticks, 2)
	assert.Equal(t, []float64{0.25}, agent.obs[0])
	assert.False(t, agent.ticks[0].Done)
	assert.Nil(t, agent.obs[1])
	assert.True(t, agent.ticks[1].Done)
	assert.InDelta(t, -1.1, agent.ticks[1].Reward, 1e-6)
}

func TestAgentError(t *testing.T) {
	agent := &stubAgent{err: errors.New("restore failed")}
	s := New(agent)

	w := do(t, s, http.MethodPost, "/learn", `{"observation": [1], "reward": 0}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeAction(t, w)
	assert.Equal(t, 4, resp.Action)
	assert.Contains(t, resp.Error, "restore failed")

	w = do(t, s, http.MethodPost, "/save", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSaveAndStatus(t *testing.T) {
	agent := &stubAgent{}
	s := New(agent)

	w := do(t, s, http.MethodPost, "/save", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, agent.saves)

	w = do(t, s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, Status{
		Epsilon:       0.25,
		Stage:         "Warmed",
		GradientSteps: 12,
	}, st)
}

func TestConvert(t *testing.T) {
	out, err := convert([]float32{1, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5}, out)

	_, err = convert([]float32{1, math32.NaN()})
	assert.Error(t, err)
	_, err = convert([]float32{math32.Inf(-1)})
	assert.Error(t, err)
}

func TestDisabledAgent(t *testing.T) {
	agent := &stubAgent{}
	s := New(agent)
	assert.NoError(t, s.Err())

	agent.err = errors.New("restore failed")
	agent.fatal = agent.err
	w := do(t, s, http.MethodPost, "/learn", `{"observation": [1]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	select {
	case <-s.Done():
	default:
		t.Fatal("server still serving a disabled agent")
	}
	assert.Equal(t, agent.fatal, s.Err())

	w = do(t, s, http.MethodPost, "/save", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, agent.saves)
}

func TestCorruptCheckpointStopsServing(t *testing.T) {
	c, err := deepq.DefaultConfig(2, 3)
	require.NoError(t, err)
	c.Layers = []int{4}
	c.Biases = []bool{true}
	c.Activations = []*network.Activation{network.ReLU()}
	c.ExpReplay.Capacity = 10
	c.ExpReplay.BatchSize = 2
	c.Solver, err = solver.NewDefaultAdam(1e-3, 2)
	require.NoError(t, err)
	c.InitWFn, err = initwfn.NewGlorotU(1.0)
	require.NoError(t, err)
	c.CheckpointDir = t.TempDir()
	c.Restore = deepq.FirstLearn

	path := c.CheckpointPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	agent, err := deepq.NewFromConfig(c, 3)
	require.NoError(t, err)
	s := New(agent)

	w := do(t, s, http.MethodPost, "/predict", `{"observation": [0.1, 0.2]}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodPost, "/learn",
		`{"observation": [0.2, 0.3], "reward": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	// The first learning step restores the checkpoint, which fails
	w = do(t, s, http.MethodPost, "/learn",
		`{"observation": [0.3, 0.4], "reward": 1}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, c.FallbackAction, decodeAction(t, w).Action)
	assert.ErrorIs(t, s.Err(), deepq.ErrCheckpoint)

	for _, route := range []string{"/learn", "/save"} {
		w = do(t, s, http.MethodPost, route,
			`{"observation": [0.4, 0.5], "reward": 1}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, route)
	}

	// The agent refuses to save even when called directly
	assert.ErrorIs(t, agent.Save(), deepq.ErrCheckpoint)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data))
}
