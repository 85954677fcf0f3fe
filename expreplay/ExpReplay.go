// Package expreplay implements a fixed capacity experience replay
// buffer from which batches of transitions are sampled uniformly.
package expreplay

import (
	"fmt"

	ts "github.com/samuelfneumann/drivedqn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Config implements a specific configuration of a Memory
type Config struct {
	Capacity  int // Maximum number of stored transitions
	BatchSize int // Number of transitions drawn per learning step
}

// Validate checks that a Config describes a usable buffer
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("validate: capacity must be >= 1 \n\thave(%v)",
			c.Capacity)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be >= 1 \n\thave(%v)",
			c.BatchSize)
	}
	if c.BatchSize > c.Capacity {
		return fmt.Errorf("validate: cannot have batch size (%v) > "+
			"capacity (%v)", c.BatchSize, c.Capacity)
	}
	return nil
}

// Create creates and returns the Memory described by the Config
func (c Config) Create(features int, seed uint64) (*Memory, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return New(c.Capacity, features, seed)
}

// Batch is a batch of transitions sampled from a Memory. Row i of
// each field corresponds to the same transition.
type Batch struct {
	Indices     []int      // Buffer slots the batch was drawn from
	States      *mat.Dense // Batch x Features
	Actions     []int
	Rewards     []float64
	NextStates  *mat.Dense // Batch x Features
	NotTerminal []float64  // 0 if the transition ended an episode, else 1
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Actions)
}

// Memory is a ring buffer of transitions. Transitions are written to
// slot Count() mod Capacity(), so once the buffer is full the oldest
// transition is overwritten.
type Memory struct {
	stateCache       []float64
	actionCache      []int
	rewardCache      []float64
	nextStateCache   []float64
	notTerminalCache []float64

	// count is the total number of transitions ever stored
	count int

	sampler Selector

	capacity    int
	featureSize int
}

// New returns a new Memory storing at most capacity transitions with
// states of featureSize features. Sampling is seeded with seed.
func New(capacity, featureSize int, seed uint64) (*Memory, error) {
	return NewWithSelector(capacity, featureSize, NewUniformSelector(seed))
}

// NewWithSelector returns a new Memory which draws batches using the
// argument Selector
func NewWithSelector(capacity, featureSize int,
	sampler Selector) (*Memory, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be >= 1")
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: feature size must be >= 1")
	}

	return &Memory{
		stateCache:       make([]float64, capacity*featureSize),
		actionCache:      make([]int, capacity),
		rewardCache:      make([]float64, capacity),
		nextStateCache:   make([]float64, capacity*featureSize),
		notTerminalCache: make([]float64, capacity),

		sampler: sampler,

		capacity:    capacity,
		featureSize: featureSize,
	}, nil
}

// Capacity returns the maximum number of transitions in the buffer
func (m *Memory) Capacity() int {
	return m.capacity
}

// Features returns the number of features in a stored state
func (m *Memory) Features() int {
	return m.featureSize
}

// Count returns the total number of transitions ever stored
func (m *Memory) Count() int {
	return m.count
}

// Len returns the number of transitions available for sampling
func (m *Memory) Len() int {
	if m.count < m.capacity {
		return m.count
	}
	return m.capacity
}

// Add adds a transition to the buffer. The buffer is left untouched
// if the transition has the wrong number of features or a negative
// action.
func (m *Memory) Add(t ts.Transition) error {
	if len(t.State) != m.featureSize || len(t.NextState) != m.featureSize {
		return &ExpReplayError{
			Op: "add",
			Err: fmt.Errorf("%w: invalid feature size \n\twant(%v)"+
				"\n\thave(%v, %v)", errShape, m.featureSize, len(t.State),
				len(t.NextState)),
		}
	}
	if t.Action < 0 {
		return &ExpReplayError{
			Op:  "add",
			Err: fmt.Errorf("%w: negative action %v", errShape, t.Action),
		}
	}

	index := m.count % m.capacity
	stateInd := index * m.featureSize
	copy(m.stateCache[stateInd:stateInd+m.featureSize], t.State)
	copy(m.nextStateCache[stateInd:stateInd+m.featureSize], t.NextState)

	m.actionCache[index] = t.Action
	m.rewardCache[index] = t.Reward
	m.notTerminalCache[index] = t.NotTerminal()

	m.count++
	return nil
}

// Store stores a single transition
func (m *Memory) Store(state []float64, action int, reward float64,
	nextState []float64, done bool) error {
	return m.Add(ts.Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Done:      done,
	})
}

// Sample samples batchSize distinct transitions uniformly at random
// from the valid portion of the buffer
func (m *Memory) Sample(batchSize int) (Batch, error) {
	if batchSize < 1 {
		return Batch{}, &ExpReplayError{
			Op:  "sample",
			Err: fmt.Errorf("batch size must be >= 1, have(%v)", batchSize),
		}
	}
	if m.Len() == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if batchSize > m.Len() {
		return Batch{}, &ExpReplayError{
			Op: "sample",
			Err: fmt.Errorf("%w \n\twant(%v) \n\thave(%v)",
				errInsufficientSamples, batchSize, m.Len()),
		}
	}

	indices := m.sampler.choose(m.Len(), batchSize)

	stateBatch := make([]float64, batchSize*m.featureSize)
	nextStateBatch := make([]float64, batchSize*m.featureSize)
	actionBatch := make([]int, batchSize)
	rewardBatch := make([]float64, batchSize)
	notTerminalBatch := make([]float64, batchSize)

	for i, index := range indices {
		batchStartInd := i * m.featureSize
		expStartInd := index * m.featureSize

		copy(stateBatch[batchStartInd:batchStartInd+m.featureSize],
			m.stateCache[expStartInd:expStartInd+m.featureSize])
		copy(nextStateBatch[batchStartInd:batchStartInd+m.featureSize],
			m.nextStateCache[expStartInd:expStartInd+m.featureSize])

		actionBatch[i] = m.actionCache[index]
		rewardBatch[i] = m.rewardCache[index]
		notTerminalBatch[i] = m.notTerminalCache[index]
	}

	return Batch{
		Indices:     indices,
		States:      mat.NewDense(batchSize, m.featureSize, stateBatch),
		Actions:     actionBatch,
		Rewards:     rewardBatch,
		NextStates:  mat.NewDense(batchSize, m.featureSize, nextStateBatch),
		NotTerminal: notTerminalBatch,
	}, nil
}

// String returns the string representation of the Memory
func (m *Memory) String() string {
	return fmt.Sprintf("Memory | Capacity: %v  |  Stored: %v  |  "+
		"Count: %v", m.capacity, m.Len(), m.count)
}
