// Package deepq implements a deep Q-learning agent with experience
// replay. A single network provides both the current action values and
// the bootstrapped action values of the next state, and is trained with
// the mean squared error over the full vector of action values, where
// only the value of the action taken is moved towards its TD target.
package deepq

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/aunum/log"
	"github.com/samuelfneumann/drivedqn/agent"
	"github.com/samuelfneumann/drivedqn/agent/policy"
	"github.com/samuelfneumann/drivedqn/expreplay"
	ts "github.com/samuelfneumann/drivedqn/timestep"
	"github.com/samuelfneumann/drivedqn/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// Stage is the lifecycle stage of a DeepQ agent
type Stage int

const (
	// Initializing agents have not yet taken a learning step
	Initializing Stage = iota

	// Warmed agents have taken at least one learning step
	Warmed
)

func (s Stage) String() string {
	if s == Warmed {
		return "Warmed"
	}
	return "Initializing"
}

// DeepQ implements the deep Q-learning algorithm with the MSE loss and
// no target network.
type DeepQ struct {
	net    agent.Approximator
	policy *policy.EGreedy
	replay *expreplay.Memory

	gamma        float64
	epsilonMin   float64
	epsilonDecay float64
	batchSize    int
	features     int
	actions      int

	checkpointPath string
	restore        RestoreMode
	stage          Stage
	gradientSteps  int

	learnEvery     int
	observations   int
	fallbackAction int

	// Push-callback state: the last observation handed to the agent and
	// the action selected in it. prevObs is nil at the start of an
	// episode.
	prevObs    []float64
	prevAction int

	// failed holds the error of a restore that could not load the
	// checkpoint. Once set, the agent refuses to learn, act or save.
	failed error
}

// New creates and returns a new DeepQ agent which learns the weights of
// net. The seed determines both exploration and replay sampling.
func New(c Config, net agent.Approximator, seed uint64) (*DeepQ, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: invalid configuration: %v", err)
	}
	if net == nil {
		return nil, fmt.Errorf("new: approximator must not be nil")
	}
	if net.Features() != c.Features || net.Actions() != c.Actions {
		return nil, fmt.Errorf("new: approximator maps %v features to %v "+
			"actions, configuration requires %v to %v", net.Features(),
			net.Actions(), c.Features, c.Actions)
	}

	replay, err := c.ExpReplay.Create(c.Features, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	behaviour, err := policy.NewEGreedy(c.Epsilon, c.Actions, seed+1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create policy: %v", err)
	}

	d := &DeepQ{
		net:            net,
		policy:         behaviour,
		replay:         replay,
		gamma:          c.Gamma,
		epsilonMin:     c.EpsilonMin,
		epsilonDecay:   c.EpsilonDecay,
		batchSize:      c.BatchSize(),
		features:       c.Features,
		actions:        c.Actions,
		checkpointPath: c.CheckpointPath(),
		restore:        c.Restore,
		stage:          Initializing,
		learnEvery:     c.LearnEvery,
		fallbackAction: c.FallbackAction,
	}

	if c.Restore == Construction {
		if _, err := d.Restore(); err != nil {
			return nil, fmt.Errorf("new: %w", err)
		}
	}

	return d, nil
}

// Err returns the checkpoint error that disabled the agent, or nil
func (d *DeepQ) Err() error {
	return d.failed
}

// NewFromConfig creates the network described by c and returns a new
// DeepQ agent which learns its weights
func NewFromConfig(c Config, seed uint64) (*DeepQ, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newFromConfig: invalid configuration: %v",
			err)
	}

	net, err := c.CreateNetwork()
	if err != nil {
		return nil, fmt.Errorf("newFromConfig: could not create network: %v",
			err)
	}
	return New(c, net, seed)
}

// Epsilon returns the current exploration rate
func (d *DeepQ) Epsilon() float64 {
	return d.policy.Epsilon()
}

// Stage returns the lifecycle stage of the agent
func (d *DeepQ) Stage() Stage {
	return d.stage
}

// GradientSteps returns the number of learning steps taken
func (d *DeepQ) GradientSteps() int {
	return d.gradientSteps
}

// Memory returns the agent's experience replay buffer
func (d *DeepQ) Memory() *expreplay.Memory {
	return d.replay
}

// Network returns the agent's action-value approximator
func (d *DeepQ) Network() agent.Approximator {
	return d.net
}

// CheckpointPath returns the file the agent saves to and restores from
func (d *DeepQ) CheckpointPath() string {
	return d.checkpointPath
}

// FallbackAction returns the action used when no observation is
// available
func (d *DeepQ) FallbackAction() int {
	return d.fallbackAction
}

// ChooseAction selects an action epsilon greedily with respect to the
// network's action values of observation
func (d *DeepQ) ChooseAction(observation []float64) (int, error) {
	if len(observation) != d.features {
		return 0, fmt.Errorf("chooseAction: invalid observation size "+
			"\n\twant(%v) \n\thave(%v)", d.features, len(observation))
	}
	if !floatutils.AllFinite(observation) {
		return 0, fmt.Errorf("chooseAction: observation is not finite: %v",
			observation)
	}

	return d.policy.SelectAction(func() ([]float64, error) {
		state := mat.NewDense(1, d.features, observation)
		values, err := d.net.Predict(state)
		if err != nil {
			return nil, err
		}
		return values.RawRowView(0), nil
	})
}

// StoreTransition stores a transition in the replay buffer
func (d *DeepQ) StoreTransition(state []float64, action int, reward float64,
	nextState []float64, done bool) error {
	if action < 0 || action >= d.actions {
		return fmt.Errorf("storeTransition: action %v out of range [0, %v)",
			action, d.actions)
	}
	if !floatutils.AllFinite(state) || !floatutils.AllFinite(nextState) ||
		!floatutils.AllFinite([]float64{reward}) {
		return fmt.Errorf("storeTransition: transition is not finite")
	}

	err := d.replay.Add(ts.Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Done:      done,
	})
	if err != nil {
		return fmt.Errorf("storeTransition: %w", err)
	}
	return nil
}

// Observe stores a transition and takes a learning step every
// LearnEvery observations
func (d *DeepQ) Observe(state []float64, action int, reward float64,
	nextState []float64, done bool) error {
	if err := d.StoreTransition(state, action, reward, nextState,
		done); err != nil {
		return fmt.Errorf("observe: %w", err)
	}

	d.observations++
	if d.observations%d.learnEvery != 0 {
		return nil
	}
	return d.Learn()
}

// Learn takes a single learning step on a batch sampled from the replay
// buffer. Learn does nothing until the buffer holds at least a batch of
// transitions. The first step that passes this check moves the agent
// from Initializing to Warmed and, if configured to, restores the
// agent's weights from its checkpoint.
func (d *DeepQ) Learn() error {
	if d.failed != nil {
		return fmt.Errorf("learn: %w", d.failed)
	}
	if d.replay.Len() < d.batchSize {
		return nil
	}

	batch, err := d.replay.Sample(d.batchSize)
	if err != nil {
		return fmt.Errorf("learn: could not sample batch: %w", err)
	}

	qEval, err := d.net.Predict(batch.States)
	if err != nil {
		return fmt.Errorf("learn: could not predict action values: %w", err)
	}
	qNext, err := d.net.Predict(batch.NextStates)
	if err != nil {
		return fmt.Errorf("learn: could not predict next action values: %w",
			err)
	}

	targets := tdTargets(qEval, qNext, batch, d.gamma)
	if err := d.net.Train(batch.States, targets); err != nil {
		return fmt.Errorf("learn: could not train: %w", err)
	}
	d.gradientSteps++
	d.decayEpsilon()

	if d.stage == Initializing {
		d.stage = Warmed
		if d.restore == FirstLearn {
			if _, err := d.Restore(); err != nil {
				return fmt.Errorf("learn: %w", err)
			}
		}
	}

	return nil
}

// decayEpsilon decays epsilon by a fixed step, never going below the
// minimum epsilon
func (d *DeepQ) decayEpsilon() {
	d.policy.SetEpsilon(math.Max(d.policy.Epsilon()-d.epsilonDecay,
		d.epsilonMin))
}

// tdTargets returns a copy of qEval where the value of the action taken
// in each row is replaced by its TD target:
//
//	r + γ * max_a' q_next(s', a') * notTerminal
func tdTargets(qEval, qNext *mat.Dense, batch expreplay.Batch,
	gamma float64) *mat.Dense {
	targets := mat.DenseCopyOf(qEval)

	for i, action := range batch.Actions {
		maxNext := mat.Max(qNext.RowView(i))
		target := batch.Rewards[i] + gamma*maxNext*batch.NotTerminal[i]
		targets.Set(i, action, target)
	}
	return targets
}

// Save checkpoints the network weights
func (d *DeepQ) Save() error {
	if d.failed != nil {
		return fmt.Errorf("save: checkpoint left untouched: %w", d.failed)
	}
	if err := d.net.Save(d.checkpointPath); err != nil {
		return &CheckpointError{Op: "save", Path: d.checkpointPath, Err: err}
	}
	return nil
}

// Restore loads the network weights from the checkpoint if it exists.
// A restored network is treated as trained, so epsilon is set to its
// minimum. Restore returns whether a checkpoint was found. A checkpoint
// that exists but cannot be loaded is an error, after which the agent
// no longer learns, acts or saves.
func (d *DeepQ) Restore() (bool, error) {
	if _, err := os.Stat(d.checkpointPath); errors.Is(err, fs.ErrNotExist) {
		log.Debugf("no checkpoint at %v, starting from scratch",
			d.checkpointPath)
		return false, nil
	} else if err != nil {
		d.failed = &CheckpointError{Op: "restore", Path: d.checkpointPath,
			Err: err}
		return false, d.failed
	}

	if err := d.net.Load(d.checkpointPath); err != nil {
		d.failed = &CheckpointError{Op: "restore", Path: d.checkpointPath,
			Err: err}
		return false, d.failed
	}
	d.policy.SetEpsilon(d.epsilonMin)

	log.Infof("restored weights from %v", d.checkpointPath)
	return true, nil
}
