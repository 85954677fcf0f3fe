package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestGreedyAtZeroEpsilon(t *testing.T) {
	p, err := NewEGreedy(0, 3, 1)
	require.NoError(t, err)

	calls := 0
	values := func() ([]float64, error) {
		calls++
		return []float64{0.5, 2, 2}, nil
	}

	for i := 0; i < 50; i++ {
		action, err := p.SelectAction(values)
		require.NoError(t, err)
		assert.Equal(t, 1, action)
	}
	assert.Equal(t, 50, calls)
}

func TestUniformAtFullEpsilon(t *testing.T) {
	const actions, draws = 4, 8000
	p, err := NewEGreedy(1, actions, 5)
	require.NoError(t, err)

	values := func() ([]float64, error) {
		t.Fatal("action values computed while exploring")
		return nil, nil
	}

	observed := make([]float64, actions)
	for i := 0; i < draws; i++ {
		action, err := p.SelectAction(values)
		require.NoError(t, err)
		observed[action]++
	}

	expected := []float64{draws / actions, draws / actions, draws / actions,
		draws / actions}
	chi := stat.ChiSquare(observed, expected)
	pValue := distuv.ChiSquared{K: actions - 1}.Survival(chi)
	assert.Greater(t, pValue, 1e-4, "exploration is not uniform: %v",
		observed)
}

func TestSelectActionErrors(t *testing.T) {
	p, err := NewEGreedy(0, 2, 1)
	require.NoError(t, err)

	_, err = p.SelectAction(func() ([]float64, error) {
		return nil, errors.New("no network")
	})
	assert.Error(t, err)

	_, err = p.Greedy([]float64{1, 2, 3})
	assert.Error(t, err)

	_, err = NewEGreedy(1.5, 2, 1)
	assert.Error(t, err)
}
