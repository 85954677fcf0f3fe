package checkpointer

import (
	"fmt"

	ts "github.com/samuelfneumann/drivedqn/timestep"
)

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	steps    int
	save     func() error
}

// NewNStep returns a checkpointer that calls object.Save() every n
// steps.
func NewNStep(n int, object Saver) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: interval must be >= 1, got %v", n)
	}
	return &nStep{interval: n, save: object.Save}, nil
}

// NewNStepFiles returns a checkpointer that saves object every n steps
// to the file named by filename.
//
// If each checkpoint should be saved in a separate file with each file
// having an incremented number as a suffix (e.g. file1.bin, file2.bin,
// ..., fileK.bin), then use FilenameEnumerator to create filename.
// Otherwise, if the filename does not matter, use FileTimer:
//
//	n, err := NewNStepFiles(10, object, FileTimer("filename", ".bin"))
func NewNStepFiles(n int, object FileSaver,
	filename func() string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStepFiles: interval must be >= 1, "+
			"got %v", n)
	}
	return &nStep{
		interval: n,
		save:     func() error { return object.Save(filename()) },
	}, nil
}

// Checkpoint counts the step and saves the tracked object if the
// interval has elapsed. Steps are counted across episodes, so the
// TimeStep's own number is not used.
func (n *nStep) Checkpoint(ts.TimeStep) error {
	n.steps++
	if n.steps%n.interval == 0 {
		if err := n.save(); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
	}
	return nil
}
