// Package agent defines the interfaces shared by value-based agents and
// the function approximators they learn with
package agent

import (
	"gonum.org/v1/gonum/mat"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy

	// Save checkpoints the agent's learned weights
	Save() error
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Observe records that taking action in state lead to reward and
	// nextState, and learns if the learner is due to
	Observe(state []float64, action int, reward float64,
		nextState []float64, done bool) error

	// Learn performs a single update to the learner
	Learn() error
}

// Policy chooses an action in each state
type Policy interface {
	ChooseAction(observation []float64) (int, error)
}

// Approximator approximates one action value per discrete action for
// batches of states. Predict must be side effect free, so that calling
// it twice on the same states without an intervening Train returns the
// same values.
type Approximator interface {
	// Predict returns a Rows(states) x Actions() matrix of action values
	Predict(states mat.Matrix) (*mat.Dense, error)

	// Train performs one gradient step on the mean squared error
	// between Predict(states) and targets over every entry
	Train(states, targets mat.Matrix) error

	// Save and Load persist the approximator's parameters
	Save(path string) error
	Load(path string) error

	Features() int
	Actions() int
}
