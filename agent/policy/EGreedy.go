// Package policy implements action selection from action values
package policy

import (
	"fmt"

	"github.com/samuelfneumann/drivedqn/utils/floatutils"
	"golang.org/x/exp/rand"
)

// EGreedy implements an epsilon greedy policy over a fixed number of
// discrete actions. With probability epsilon an action is selected
// uniformly at random, otherwise the action of highest value is
// selected with ties broken in favour of the lowest action index.
type EGreedy struct {
	epsilon float64
	actions int
	rng     *rand.Rand
}

// NewEGreedy returns a new EGreedy policy over actions actions
func NewEGreedy(epsilon float64, actions int, seed uint64) (*EGreedy, error) {
	if actions < 1 {
		return nil, fmt.Errorf("newEGreedy: actions must be >= 1")
	}
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("newEGreedy: epsilon must be in [0, 1] "+
			"\n\thave(%v)", epsilon)
	}

	return &EGreedy{
		epsilon: epsilon,
		actions: actions,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// SetEpsilon sets the value for epsilon in the epsilon greedy policy.
func (e *EGreedy) SetEpsilon(ε float64) {
	e.epsilon = ε
}

// Epsilon gets the value of epsilon for the policy.
func (e *EGreedy) Epsilon() float64 {
	return e.epsilon
}

// Actions returns the number of actions the policy selects between
func (e *EGreedy) Actions() int {
	return e.actions
}

// Explore decides whether the next action is exploratory. If it is,
// the uniformly random action is returned along with true and no
// action values need to be computed.
func (e *EGreedy) Explore() (int, bool) {
	if e.rng.Float64() < e.epsilon {
		return e.rng.Intn(e.actions), true
	}
	return 0, false
}

// Greedy returns the first action of maximum value
func (e *EGreedy) Greedy(actionValues []float64) (int, error) {
	if len(actionValues) != e.actions {
		return 0, fmt.Errorf("greedy: invalid number of action values "+
			"\n\twant(%v) \n\thave(%v)", e.actions, len(actionValues))
	}
	return floatutils.Argmax(actionValues), nil
}

// SelectAction selects an action, calling values for the action values
// only if the action is not exploratory
func (e *EGreedy) SelectAction(values func() ([]float64, error)) (int,
	error) {
	if action, ok := e.Explore(); ok {
		return action, nil
	}

	actionValues, err := values()
	if err != nil {
		return 0, fmt.Errorf("selectAction: could not compute action "+
			"values: %v", err)
	}
	return e.Greedy(actionValues)
}
