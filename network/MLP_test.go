package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
)

func newTestMLP(t *testing.T, batch int, hidden []int,
	init G.InitWFn) *MLP {
	t.Helper()

	biases := make([]bool, len(hidden))
	activations := make([]*Activation, len(hidden))
	for i := range hidden {
		biases[i] = true
		activations[i] = ReLU()
	}

	net, err := NewMLP(3, 2, batch, hidden, biases, activations, init,
		G.NewAdamSolver(G.WithLearnRate(0.01)))
	require.NoError(t, err)
	return net
}

func TestPredictShapes(t *testing.T) {
	net := newTestMLP(t, 4, []int{5}, G.GlorotU(1.0))

	single, err := net.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	require.NoError(t, err)
	r, c := single.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, c)

	batch, err := net.Predict(mat.NewDense(2, 3, []float64{
		1, 2, 3,
		-1, 0, 1,
	}))
	require.NoError(t, err)
	r, c = batch.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)

	// Predictions do not depend on the batch a state is predicted in
	assert.InDeltaSlice(t, single.RawRowView(0), batch.RawRowView(0), 1e-12)

	_, err = net.Predict(mat.NewDense(1, 2, nil))
	assert.Error(t, err)
}

func TestTrainReducesLoss(t *testing.T) {
	net := newTestMLP(t, 4, []int{8}, G.GlorotU(1.0))

	states := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		1, 1, 1,
	})
	targets := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		0, 0,
	})

	require.NoError(t, net.Train(states, targets))
	first := net.Loss()
	for i := 0; i < 300; i++ {
		require.NoError(t, net.Train(states, targets))
	}
	assert.Less(t, net.Loss(), first)

	// Inference graphs see the trained weights
	pred, err := net.Predict(states)
	require.NoError(t, err)
	diff := mat.NewDense(4, 2, nil)
	diff.Sub(pred, targets)
	diff.MulElem(diff, diff)
	assert.InDelta(t, net.Loss(), mat.Sum(diff)/8, 0.05)
}

func TestTrainRejectsWrongBatch(t *testing.T) {
	net := newTestMLP(t, 4, nil, G.Zeroes())

	err := net.Train(mat.NewDense(2, 3, nil), mat.NewDense(2, 2, nil))
	assert.Error(t, err)

	err = net.Train(mat.NewDense(4, 3, nil), mat.NewDense(4, 3, nil))
	assert.Error(t, err)
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoints", "model.gob")

	source := newTestMLP(t, 2, []int{4, 4}, G.GlorotU(1.0))
	require.NoError(t, source.Save(path))

	dest := newTestMLP(t, 2, []int{4, 4}, G.Zeroes())
	require.NoError(t, dest.Load(path))

	states := mat.NewDense(2, 3, []float64{0.1, 0.2, 0.3, -1, 2, 0})
	want, err := source.Predict(states)
	require.NoError(t, err)
	have, err := dest.Predict(states)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, have, 1e-12))
}

func TestLoadIncompatible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")

	source := newTestMLP(t, 2, []int{4}, G.GlorotU(1.0))
	require.NoError(t, source.Save(path))

	dest := newTestMLP(t, 2, []int{6}, G.Zeroes())
	err := dest.Load(path)
	require.Error(t, err)
	assert.Equal(t, ErrIncompatible, errors.Cause(err))
}

func TestLoadCorruptAndMissing(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.gob")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a model"), 0o644))

	net := newTestMLP(t, 2, nil, G.Zeroes())
	err := net.Load(corrupt)
	require.Error(t, err)
	assert.NotEqual(t, ErrIncompatible, errors.Cause(err))

	err = net.Load(filepath.Join(dir, "missing.gob"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestActivationJSON(t *testing.T) {
	act := TanH()
	data, err := act.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"tanh"`, string(data))

	var decoded Activation
	require.NoError(t, decoded.UnmarshalJSON([]byte(`"relu"`)))
	assert.Equal(t, "relu", decoded.String())
	assert.Error(t, decoded.UnmarshalJSON([]byte(`"sigmoid"`)))
}
