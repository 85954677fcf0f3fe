package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalSolver(t *testing.T) {
	data := []byte(`{"Type": "RMSProp", "Config": {"StepSize": 0.001,
		"Epsilon": 1e-8, "Rho": 0.9, "Batch": 32}}`)

	var s Solver
	require.NoError(t, json.Unmarshal(data, &s))

	assert.Equal(t, RMSProp, s.Type)
	assert.Equal(t, 0.001, s.LearningRate())
	assert.NotNil(t, s.Solver)
}

func TestMarshalRoundTrip(t *testing.T) {
	adam, err := NewDefaultAdam(1e-3, 256)
	require.NoError(t, err)

	data, err := json.Marshal(adam)
	require.NoError(t, err)

	var s Solver
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, Adam, s.Type)
	assert.Equal(t, adam.Config, s.Config)
}

func TestUnknownSolverType(t *testing.T) {
	var s Solver
	err := json.Unmarshal([]byte(`{"Type": "Momentum", "Config": {}}`), &s)
	assert.Error(t, err)
}

func TestInvalidHyperparameters(t *testing.T) {
	_, err := NewAdam(0, 1e-8, 0.9, 0.999, 1)
	assert.Error(t, err)

	_, err = NewRMSProp(1e-3, 1e-8, 1.5, 1, -1)
	assert.Error(t, err)

	_, err = NewVanilla(1e-3, 0, -1)
	assert.Error(t, err)
}
