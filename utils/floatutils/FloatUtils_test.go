package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgmaxFirstOnTies(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float64{1, 1, 1}))
	assert.Equal(t, 1, Argmax([]float64{0, 3, 3, 2}))
	assert.Equal(t, 2, Argmax([]float64{-5, -4, -1}))
	assert.Equal(t, 0, Argmax([]float64{7}))
}

func TestAllFinite(t *testing.T) {
	assert.True(t, AllFinite([]float64{0, 1, -2}))
	assert.False(t, AllFinite([]float64{0, math.NaN()}))
	assert.False(t, AllFinite([]float64{math.Inf(-1)}))
}
