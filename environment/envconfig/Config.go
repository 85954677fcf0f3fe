// Package envconfig provides configuration structs for configuring
// environments with default physical parameters and tasks. Environment
// configurations in this package are JSON serializable.
//
// Environments which need extra system dependencies register themselves
// with this package when they are imported. The Gym environment is
// available only when package environment/gym is built in.
package envconfig

import (
	"fmt"
	"sort"
	"sync"

	env "github.com/samuelfneumann/drivedqn/environment"
	"github.com/samuelfneumann/drivedqn/environment/track"
	ts "github.com/samuelfneumann/drivedqn/timestep"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	Track EnvName = "Track"
	Gym   EnvName = "Gym"
)

// Maker creates the environment described by a Config
type Maker func(c Config, seed uint64) (env.Environment, ts.TimeStep, error)

var (
	makersMu sync.RWMutex
	makers   = map[EnvName]Maker{
		Track: CreateTrack,
	}
)

// Register makes an environment available to Config.Create under the
// given name. Registering a name twice panics.
func Register(name EnvName, m Maker) {
	makersMu.Lock()
	defer makersMu.Unlock()

	if m == nil {
		panic("register: maker is nil")
	}
	if _, ok := makers[name]; ok {
		panic(fmt.Sprintf("register: environment %v registered twice",
			name))
	}
	makers[name] = m
}

// Registered returns the names of all environments that can be created
func Registered() []EnvName {
	makersMu.RLock()
	defer makersMu.RUnlock()

	names := make([]EnvName, 0, len(makers))
	for name := range makers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Config implements a specific configuration of a specific environment
type Config struct {
	Environment EnvName

	// Track configures the Track environment
	Track track.Config

	// FrameSkip is the number of simulator frames each action is held
	// for in the Track environment
	FrameSkip int

	// GymName is the OpenAI Gym environment name, e.g. LunarLander-v2
	GymName string

	EpisodeCutoff int
	Discount      float64
}

// NewConfig returns a new Config for the Track environment with
// default physical parameters
func NewConfig(frameSkip, episodeCutoff int, discount float64) Config {
	return Config{
		Environment:   Track,
		Track:         track.DefaultConfig(),
		FrameSkip:     frameSkip,
		EpisodeCutoff: episodeCutoff,
		Discount:      discount,
	}
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment.
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	makersMu.RLock()
	maker, ok := makers[c.Environment]
	makersMu.RUnlock()

	if !ok {
		return nil, ts.TimeStep{}, fmt.Errorf("create: cannot create "+
			"environment %v, no such environment, registered "+
			"environments are %v", c.Environment, Registered())
	}
	return maker(c, seed)
}

// CreateTrack is a factory for creating the Track environment
func CreateTrack(c Config, seed uint64) (env.Environment, ts.TimeStep,
	error) {
	frameSkip := c.FrameSkip
	if frameSkip == 0 {
		frameSkip = 1
	}
	e, step, err := track.NewEnv(c.Track, frameSkip, c.EpisodeCutoff,
		c.Discount, seed)
	if err != nil {
		return nil, ts.TimeStep{}, err
	}
	return e, step, nil
}
