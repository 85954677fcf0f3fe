package deepq

import "errors"

// ErrCheckpoint matches every error returned when saving or restoring
// a checkpoint fails
var ErrCheckpoint = errors.New("checkpoint failure")

// CheckpointError reports a checkpoint that could not be saved or
// restored. Restore failures are not recoverable: the agent must not
// continue with weights other than those it was asked to restore.
type CheckpointError struct {
	Op   string
	Path string
	Err  error
}

// Error satisfies the error interface
func (e *CheckpointError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCheckpoint
func (e *CheckpointError) Is(target error) bool {
	return target == ErrCheckpoint
}
