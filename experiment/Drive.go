package experiment

import (
	"errors"
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/drivedqn/agent/deepq"
	env "github.com/samuelfneumann/drivedqn/environment"
	"github.com/samuelfneumann/drivedqn/experiment/tracker"
)

// Simulator is a Host whose simulation is advanced one frame at a time
// by the caller
type Simulator interface {
	env.Host
	Tick()
}

// Drive is an Experiment that plays the role of a game engine: it
// advances a Simulator frame by frame and runs a HostLoop after each
// frame.
type Drive struct {
	sim  Simulator
	loop *HostLoop

	maxFrames uint
	frames    uint

	// OnStep, if set, is called after every frame
	OnStep func()
}

// NewDrive returns a new Drive experiment which runs for frames frames
func NewDrive(sim Simulator, loop *HostLoop, frames uint) *Drive {
	return &Drive{sim: sim, loop: loop, maxFrames: frames}
}

// Loop returns the learning block run after each frame
func (d *Drive) Loop() *HostLoop {
	return d.loop
}

// Register registers a tracker.Tracker with the experiment
func (d *Drive) Register(t tracker.Tracker) {
	d.loop.Register(t)
}

// Frame simulates a single frame and runs the learning block on it.
// Errors from restoring a checkpoint are returned. All other agent
// errors are logged, and the bot keeps driving with the fallback
// action.
func (d *Drive) Frame() error {
	d.frames++
	d.sim.Tick()

	if err := d.loop.Tick(); err != nil {
		if errors.Is(err, deepq.ErrCheckpoint) {
			return fmt.Errorf("frame: %w", err)
		}
		log.Errorf("frame %d: %v", d.frames, err)
	}

	if d.OnStep != nil {
		d.OnStep()
	}
	return nil
}

// RunEpisode runs frames until an episode finishes or the frame limit
// is reached, and returns whether the frame limit was reached
func (d *Drive) RunEpisode() (bool, error) {
	games := d.loop.Games()
	for d.loop.Games() == games && d.frames < d.maxFrames {
		if err := d.Frame(); err != nil {
			return true, fmt.Errorf("runEpisode: %w", err)
		}
	}
	return d.frames >= d.maxFrames, nil
}

// Run runs the entire experiment for all frames
func (d *Drive) Run() error {
	for {
		ended, err := d.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if ended {
			return nil
		}
	}
}

// Save saves the agent and all tracked data
func (d *Drive) Save() error {
	return d.loop.Save()
}
