// Package floatutils provides utilities for working with floats
package floatutils

import "math"

// Argmax returns the index of the first maximum value in a slice.
// Ties are broken in favour of the lowest index.
func Argmax(values []float64) int {
	index := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[index] {
			index = i
		}
	}
	return index
}

// AllFinite returns whether no value in the slice is NaN or infinite
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
