package deepq

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/samuelfneumann/drivedqn/expreplay"
	"github.com/samuelfneumann/drivedqn/initwfn"
	"github.com/samuelfneumann/drivedqn/network"
	"github.com/samuelfneumann/drivedqn/solver"
)

// RestoreMode determines when a DeepQ agent attempts to restore its
// weights from a checkpoint
type RestoreMode string

const (
	// FirstLearn restores on the first learning step that passes the
	// warm-up guard
	FirstLearn RestoreMode = "FirstLearn"

	// Construction restores when the agent is created
	Construction RestoreMode = "Construction"

	// Never disables restoring
	Never RestoreMode = "Never"
)

// Config implements a configuration for a DeepQ agent
type Config struct {
	Layers      []int                 // Hidden layer sizes in neural net
	Biases      []bool                // Whether each layer should have a bias
	Activations []*network.Activation // Activation of each layer
	Solver      *solver.Solver        // Solver for learning weights

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn

	Gamma float64 // Discount

	// Behaviour policy epsilon, which decays by EpsilonDecay after each
	// learning step until it reaches EpsilonMin
	Epsilon      float64
	EpsilonMin   float64
	EpsilonDecay float64

	// Experience replay parameters
	ExpReplay expreplay.Config

	Features int // Observation dimension
	Actions  int // Number of discrete actions

	CheckpointDir  string
	CheckpointFile string
	Restore        RestoreMode

	// LearnEvery is the number of observations between learning steps
	// when the agent is driven through Observe
	LearnEvery int

	// FallbackAction is returned when no observation is available to
	// select an action with
	FallbackAction int
}

// DefaultConfig returns the configuration that the vehicle agent was
// originally trained with: three ReLU layers of 40, 30, and 20 units,
// Adam with a step size of 1e-3, and epsilon decaying from 1 to 0.01
// in steps of 1e-4.
func DefaultConfig(features, actions int) (Config, error) {
	const batch = 256

	adam, err := solver.NewDefaultAdam(1e-3, batch)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %v", err)
	}
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		return Config{}, fmt.Errorf("defaultConfig: %v", err)
	}

	return Config{
		Layers: []int{40, 30, 20},
		Biases: []bool{true, true, true},
		Activations: []*network.Activation{
			network.ReLU(),
			network.ReLU(),
			network.ReLU(),
		},
		Solver:  adam,
		InitWFn: init,

		Gamma:        0.99,
		Epsilon:      1.0,
		EpsilonMin:   0.01,
		EpsilonDecay: 1e-4,

		ExpReplay: expreplay.Config{
			Capacity:  1_000_000,
			BatchSize: batch,
		},

		Features: features,
		Actions:  actions,

		CheckpointDir:  "checkpoints",
		CheckpointFile: "my_checkpoint.gob",
		Restore:        FirstLearn,
		LearnEvery:     1,
		FallbackAction: 0,
	}, nil
}

// LoadConfig reads a JSON Config from a file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loadConfig: %v", err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("loadConfig: could not decode %v: %v",
			path, err)
	}
	return c, nil
}

// BatchSize returns the batch size of the agent constructed using this
// Config
func (c Config) BatchSize() int {
	return c.ExpReplay.BatchSize
}

// CheckpointPath returns the file that the agent's weights are saved to
func (c Config) CheckpointPath() string {
	return filepath.Join(c.CheckpointDir, c.CheckpointFile)
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent. All violations are reported together.
func (c Config) Validate() error {
	var result *multierror.Error

	if len(c.Layers) != len(c.Biases) {
		result = multierror.Append(result, fmt.Errorf("invalid number of "+
			"biases\n\twant(%v)\n\thave(%v)", len(c.Layers), len(c.Biases)))
	}
	if len(c.Layers) != len(c.Activations) {
		result = multierror.Append(result, fmt.Errorf("invalid number of "+
			"activations\n\twant(%v)\n\thave(%v)", len(c.Layers),
			len(c.Activations)))
	}
	for i, act := range c.Activations {
		if act == nil {
			result = multierror.Append(result, fmt.Errorf("activation %v "+
				"is nil", i))
		}
	}

	if c.Gamma < 0 || c.Gamma > 1 {
		result = multierror.Append(result, fmt.Errorf("gamma must be in "+
			"[0, 1]\n\thave(%v)", c.Gamma))
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		result = multierror.Append(result, fmt.Errorf("epsilon must be in "+
			"[0, 1]\n\thave(%v)", c.Epsilon))
	}
	if c.EpsilonMin < 0 || c.EpsilonMin > 1 {
		result = multierror.Append(result, fmt.Errorf("minimum epsilon "+
			"must be in [0, 1]\n\thave(%v)", c.EpsilonMin))
	}
	if c.EpsilonMin > c.Epsilon {
		result = multierror.Append(result, fmt.Errorf("minimum epsilon "+
			"must not exceed epsilon\n\twant(<= %v)\n\thave(%v)", c.Epsilon,
			c.EpsilonMin))
	}
	if c.EpsilonDecay < 0 {
		result = multierror.Append(result, fmt.Errorf("epsilon decay must "+
			"be >= 0\n\thave(%v)", c.EpsilonDecay))
	}

	if err := c.ExpReplay.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Features < 1 {
		result = multierror.Append(result, fmt.Errorf("features must be "+
			">= 1\n\thave(%v)", c.Features))
	}
	if c.Actions < 1 {
		result = multierror.Append(result, fmt.Errorf("actions must be "+
			">= 1\n\thave(%v)", c.Actions))
	}
	if c.FallbackAction < 0 || c.FallbackAction >= c.Actions {
		result = multierror.Append(result, fmt.Errorf("fallback action "+
			"must be in [0, %v)\n\thave(%v)", c.Actions, c.FallbackAction))
	}
	if c.LearnEvery < 1 {
		result = multierror.Append(result, fmt.Errorf("learning interval "+
			"must be >= 1\n\thave(%v)", c.LearnEvery))
	}

	switch c.Restore {
	case FirstLearn, Construction, Never:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown restore "+
			"mode %q", c.Restore))
	}
	if c.Restore != Never && c.CheckpointFile == "" {
		result = multierror.Append(result, fmt.Errorf("checkpoint file "+
			"must be set to restore"))
	}

	return result.ErrorOrNil()
}

// CreateNetwork returns the action-value network the Config describes
func (c Config) CreateNetwork() (*network.MLP, error) {
	if c.Solver == nil {
		return nil, fmt.Errorf("createNetwork: no solver configured")
	}
	if c.InitWFn == nil {
		return nil, fmt.Errorf("createNetwork: no weight initializer " +
			"configured")
	}

	return network.NewMLP(c.Features, c.Actions, c.BatchSize(), c.Layers,
		c.Biases, c.Activations, c.InitWFn.InitWFn(), c.Solver)
}
