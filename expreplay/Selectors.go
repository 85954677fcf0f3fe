package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which stored
// transitions should be sampled from an experience replay buffer
type Selector interface {
	// choose selects n distinct indices in [0, size)
	choose(size, n int) []int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly without replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly, without replacement, from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{rng: rng}
}

// choose selects n distinct indices using Floyd's subset algorithm,
// then shuffles them so that their order is also uniform. The cost is
// O(n) regardless of the buffer size.
func (u *uniformSelector) choose(size, n int) []int {
	selected := make([]int, 0, n)
	seen := make(map[int]struct{}, n)

	for j := size - n; j < size; j++ {
		index := u.rng.Intn(j + 1)
		if _, ok := seen[index]; ok {
			index = j
		}
		seen[index] = struct{}{}
		selected = append(selected, index)
	}

	u.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected
}
