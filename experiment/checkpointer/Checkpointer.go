// Package checkpointer implements periodic checkpointing of agents and
// their approximators during an experiment
package checkpointer

import ts "github.com/samuelfneumann/drivedqn/timestep"

// Saver is an object that saves itself to a location it owns, such as
// an agent saving its weights to its checkpoint file
type Saver interface {
	Save() error
}

// FileSaver is an object that can be saved to any file, such as an
// action-value approximator
type FileSaver interface {
	Save(path string) error
}

// Checkpointer checkpoints/saves objects based on timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
