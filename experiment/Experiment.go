// Package experiment implements functionality for running an agent in
// an environment, either by stepping the environment in a loop
// (Online) or by answering a host that owns the simulation loop and
// calls the agent once per frame (HostLoop, Drive).
package experiment

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/drivedqn/agent/deepq"
	"github.com/samuelfneumann/drivedqn/environment/envconfig"
	trackenv "github.com/samuelfneumann/drivedqn/environment/track"
	"github.com/samuelfneumann/drivedqn/experiment/checkpointer"
	"github.com/samuelfneumann/drivedqn/experiment/tracker"
	ts "github.com/samuelfneumann/drivedqn/timestep"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each TimeStep to Trackers, which cache the data
// they need to later save it to disk. The Run() method runs all
// episodes until the step limit is reached. The RunEpisode() method
// runs a single episode and returns whether the step limit was
// reached.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error)

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment
	Register(t tracker.Tracker)

	// Save saves the agent and all tracked data to disk
	Save() error
}

// Type determines which kind of experiment a Config creates
type Type string

const (
	OnlineExp Type = "Online"
	DriveExp  Type = "Drive"
)

// Config represents a configuration of an experiment. Configs are JSON
// serializable.
type Config struct {
	Type
	MaxSteps  uint
	EnvConf   envconfig.Config
	AgentConf deepq.Config

	// CheckpointEvery saves the agent every so many steps, or never if
	// it is 0
	CheckpointEvery int

	// ScoreFile is where per episode scores are saved, and ScoreWindow
	// is the number of episodes the logged mean score is taken over
	ScoreFile   string
	ScoreWindow int
}

// DefaultConfig returns the configuration of learning to drive on the
// track with the default agent hyper-parameters
func DefaultConfig() (Config, error) {
	envConf := envconfig.NewConfig(1, 0, 0.99)
	agentConf, err := deepq.DefaultConfig(envConf.Track.Features(),
		envConf.Track.Actions())
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %v", err)
	}

	return Config{
		Type:            DriveExp,
		MaxSteps:        1_000_000,
		EnvConf:         envConf,
		AgentConf:       agentConf,
		CheckpointEvery: 10_000,
		ScoreFile:       "scores.bin",
		ScoreWindow:     100,
	}, nil
}

// LoadConfig reads a JSON Config from a file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "loadConfig")
	}

	c, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrapf(err, "loadConfig: could not decode %v",
			path)
	}
	return c, nil
}

// Validate returns an error describing every invalid field of the
// configuration
func (c Config) Validate() error {
	var result *multierror.Error

	switch c.Type {
	case OnlineExp:
	case DriveExp:
		if c.EnvConf.Environment != envconfig.Track {
			result = multierror.Append(result, fmt.Errorf("%v experiments "+
				"need the %v environment", DriveExp, envconfig.Track))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown experiment "+
			"type %q", c.Type))
	}

	if c.MaxSteps == 0 {
		result = multierror.Append(result, fmt.Errorf("max steps must be "+
			"positive"))
	}
	if c.CheckpointEvery < 0 {
		result = multierror.Append(result, fmt.Errorf("checkpoint interval "+
			"must be non-negative, got %v", c.CheckpointEvery))
	}
	if c.ScoreWindow < 1 {
		result = multierror.Append(result, fmt.Errorf("score window must "+
			"be >= 1, got %v", c.ScoreWindow))
	}
	if c.EnvConf.Environment == envconfig.Track {
		if err := c.EnvConf.Track.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
		if c.AgentConf.Features != c.EnvConf.Track.Features() {
			result = multierror.Append(result, fmt.Errorf("agent expects "+
				"%v features but the track observes %v",
				c.AgentConf.Features, c.EnvConf.Track.Features()))
		}
		if c.AgentConf.Actions != c.EnvConf.Track.Actions() {
			result = multierror.Append(result, fmt.Errorf("agent expects "+
				"%v actions but the track has %v", c.AgentConf.Actions,
				c.EnvConf.Track.Actions()))
		}
	}
	if err := c.AgentConf.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// Checkpointers returns the checkpointers the Config describes for
// agent a
func (c Config) Checkpointers(a checkpointer.Saver) ([]checkpointer.Checkpointer,
	error) {
	if c.CheckpointEvery == 0 {
		return nil, nil
	}
	check, err := checkpointer.NewNStep(c.CheckpointEvery, a)
	if err != nil {
		return nil, fmt.Errorf("checkpointers: %v", err)
	}
	return []checkpointer.Checkpointer{check}, nil
}

// CreateExp creates the experiment described by the Config. The
// checkpointers described by the Config run before check. The returned
// agent is the one the experiment trains.
func (c Config) CreateExp(seed uint64, t []tracker.Tracker,
	check []checkpointer.Checkpointer) (Experiment, *deepq.DeepQ, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("createExp: %v", err)
	}

	environment, step, err := c.EnvConf.Create(seed)
	if err != nil {
		return nil, nil, fmt.Errorf("createExp: could not create "+
			"environment: %v", err)
	}
	if features := step.Observation.Len(); features != c.AgentConf.Features {
		return nil, nil, fmt.Errorf("createExp: agent expects %v features "+
			"but the environment observes %v", c.AgentConf.Features,
			features)
	}

	agent, err := deepq.NewFromConfig(c.AgentConf, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("createExp: could not create agent: %v",
			err)
	}

	periodic, err := c.Checkpointers(agent)
	if err != nil {
		return nil, nil, fmt.Errorf("createExp: %v", err)
	}
	check = append(periodic, check...)

	scores, err := tracker.NewScores(c.ScoreWindow, c.ScoreFile)
	if err != nil {
		return nil, nil, fmt.Errorf("createExp: %v", err)
	}

	switch c.Type {
	case OnlineExp:
		o := NewOnline(environment, agent, c.MaxSteps, scores, t, check)
		return o, agent, nil

	case DriveExp:
		e, ok := environment.(*trackenv.Env)
		if !ok {
			return nil, nil, fmt.Errorf("createExp: cannot drive %T",
				environment)
		}
		loop := NewHostLoop(e.Car, agent, scores, t, check)
		return NewDrive(e.Car, loop, c.MaxSteps), agent, nil
	}

	return nil, nil, fmt.Errorf("createExp: no such experiment type %v",
		c.Type)
}

// track sends a timestep to each tracker
func track(trackers []tracker.Tracker, step ts.TimeStep) {
	for _, t := range trackers {
		t.Track(step)
	}
}

// checkpoint sends a timestep to each checkpointer
func checkpoint(check []checkpointer.Checkpointer, step ts.TimeStep) error {
	for _, c := range check {
		if err := c.Checkpoint(step); err != nil {
			return err
		}
	}
	return nil
}

// save saves each tracker's data
func save(trackers []tracker.Tracker) error {
	var result *multierror.Error
	for _, t := range trackers {
		if err := t.Save(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
