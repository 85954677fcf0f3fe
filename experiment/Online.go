package experiment

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/drivedqn/agent"
	env "github.com/samuelfneumann/drivedqn/environment"
	"github.com/samuelfneumann/drivedqn/experiment/checkpointer"
	"github.com/samuelfneumann/drivedqn/experiment/tracker"
	"gonum.org/v1/gonum/mat"
)

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps      uint
	currentSteps  uint
	scores        *tracker.Scores
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer

	// OnStep, if set, is called after every environmental step
	OnStep func()
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for. Episode returns are
// recorded in scores, which may be nil.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	scores *tracker.Scores, t []tracker.Tracker,
	c []checkpointer.Checkpointer) *Online {
	return &Online{
		Environment:   e,
		Agent:         a,
		maxSteps:      steps,
		scores:        scores,
		trackers:      t,
		checkpointers: c,
	}
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// AddCheckpointer adds a checkpointer which is run after those the
// experiment was created with
func (o *Online) AddCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// Steps returns the number of steps taken so far
func (o *Online) Steps() uint {
	return o.currentSteps
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.Environment.Reset()
	if err != nil {
		return true, fmt.Errorf("runEpisode: could not reset: %v", err)
	}
	track(o.trackers, step)

	var score float64
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		state := copyVec(step.Observation)
		action, err := o.Agent.ChooseAction(state)
		if err != nil {
			return true, fmt.Errorf("runEpisode: %w", err)
		}

		next, last, err := o.Environment.Step(
			mat.NewVecDense(1, []float64{float64(action)}),
		)
		if err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		track(o.trackers, next)
		score += next.Reward

		err = o.Agent.Observe(state, action, next.Reward,
			copyVec(next.Observation), last)
		if err != nil {
			return true, fmt.Errorf("runEpisode: %w", err)
		}

		if err := checkpoint(o.checkpointers, next); err != nil {
			return true, fmt.Errorf("runEpisode: %w", err)
		}
		if o.OnStep != nil {
			o.OnStep()
		}
		step = next
	}

	if step.Last() && o.scores != nil {
		o.scores.Record(score)
		log.Debugf("Game: %d Score: %.2f Mean: %.2f", o.scores.Games(),
			score, o.scores.Mean())
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for {
		ended, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if ended {
			return nil
		}
	}
}

// Save saves the agent and all the data cached by the Trackers
func (o *Online) Save() error {
	if err := o.Agent.Save(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if o.scores != nil {
		if err := o.scores.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	if err := save(o.trackers); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// copyVec returns the elements of v as a new slice
func copyVec(v *mat.VecDense) []float64 {
	data := make([]float64, v.Len())
	for i := range data {
		data[i] = v.AtVec(i)
	}
	return data
}
