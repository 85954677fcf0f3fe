package track

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Default physical and task parameters of the track
const (
	Triggers          = 72
	Rays              = 20
	RayLength         = 30.0
	SpeedScale        = 23.0
	AngularSpeedScale = 2.0
	FPS               = 60.0
	TimeLimit         = 3.0
	BackTriggerLimit  = 3

	InnerA = 60.0
	InnerB = 35.0
	OuterA = 76.0
	OuterB = 51.0

	CarHalfWidth  = 0.5
	CarHalfLength = 1.0
	CarDensity    = 1.0
	EngineForce   = 40.0
	TurnTorque    = 10.0

	LinearDamping  = 1.0
	AngularDamping = 4.0

	VelocityIterations = 8
	PositionIterations = 3
)

// Config describes the geometry of the track and the rules of the
// driving task. Configs are JSON serializable.
type Config struct {
	// Number of checkpoint gates placed around the track
	Triggers int

	// Number of distance sensors spread evenly around the car and
	// their maximum reach
	Rays      int
	RayLength float64

	// Seconds the car has to reach the next gate before timing out
	TimeLimit float64

	// Number of gates the car may cross backwards before the episode
	// ends
	BackTriggerLimit int

	// Inner and outer wall ellipse semi-axes
	InnerA, InnerB float64
	OuterA, OuterB float64

	// Maximum heading perturbation in radians applied when the car
	// respawns
	SpawnJitter float64

	FPS float64
}

// DefaultConfig returns the default track configuration
func DefaultConfig() Config {
	return Config{
		Triggers:         Triggers,
		Rays:             Rays,
		RayLength:        RayLength,
		TimeLimit:        TimeLimit,
		BackTriggerLimit: BackTriggerLimit,
		InnerA:           InnerA,
		InnerB:           InnerB,
		OuterA:           OuterA,
		OuterB:           OuterB,
		SpawnJitter:      0.05,
		FPS:              FPS,
	}
}

// LoadConfig reads a JSON track configuration from a file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "loadConfig")
	}

	c := DefaultConfig()
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrapf(err, "loadConfig: could not decode %v",
			path)
	}
	return c, c.Validate()
}

// Features returns the length of the observation vector produced
// under the configuration
func (c Config) Features() int {
	return c.Rays + 9
}

// Actions returns the number of discrete actions of the car
func (c Config) Actions() int {
	return 9
}

// Validate returns an error describing every invalid field of the
// configuration
func (c Config) Validate() error {
	var result *multierror.Error

	if c.Triggers < 3 {
		result = multierror.Append(result, fmt.Errorf("triggers must be "+
			">= 3, got %v", c.Triggers))
	}
	if c.Rays < 1 {
		result = multierror.Append(result, fmt.Errorf("rays must be >= 1, "+
			"got %v", c.Rays))
	}
	if c.RayLength <= 0 {
		result = multierror.Append(result, fmt.Errorf("ray length must be "+
			"positive, got %v", c.RayLength))
	}
	if c.TimeLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("time limit must be "+
			"positive, got %v", c.TimeLimit))
	}
	if c.BackTriggerLimit < 1 {
		result = multierror.Append(result, fmt.Errorf("back trigger limit "+
			"must be >= 1, got %v", c.BackTriggerLimit))
	}
	if c.InnerA <= 0 || c.InnerB <= 0 {
		result = multierror.Append(result, fmt.Errorf("inner wall axes "+
			"must be positive"))
	}
	if c.OuterA <= c.InnerA || c.OuterB <= c.InnerB {
		result = multierror.Append(result, fmt.Errorf("outer wall must "+
			"enclose the inner wall"))
	}
	if c.SpawnJitter < 0 {
		result = multierror.Append(result, fmt.Errorf("spawn jitter must "+
			"be non-negative, got %v", c.SpawnJitter))
	}
	if c.FPS <= 0 {
		result = multierror.Append(result, fmt.Errorf("fps must be "+
			"positive, got %v", c.FPS))
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "validate")
	}
	return nil
}
