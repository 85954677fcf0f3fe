package checkpointer

import (
	"errors"
	"testing"

	ts "github.com/samuelfneumann/drivedqn/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSaver struct {
	saves int
	err   error
}

func (c *countingSaver) Save() error {
	c.saves++
	return c.err
}

type pathSaver struct {
	paths []string
}

func (p *pathSaver) Save(path string) error {
	p.paths = append(p.paths, path)
	return nil
}

func TestNStep(t *testing.T) {
	saver := &countingSaver{}
	c, err := NewNStep(3, saver)
	require.NoError(t, err)

	// Steps are counted across episode boundaries
	for i := 0; i < 7; i++ {
		require.NoError(t, c.Checkpoint(ts.New(ts.Mid, 0, 1, nil, i%2)))
	}
	assert.Equal(t, 2, saver.saves)

	_, err = NewNStep(0, saver)
	assert.Error(t, err)
}

func TestNStepError(t *testing.T) {
	saver := &countingSaver{err: errors.New("disk full")}
	c, err := NewNStep(1, saver)
	require.NoError(t, err)

	err = c.Checkpoint(ts.TimeStep{})
	require.Error(t, err)
	assert.ErrorIs(t, err, saver.err)
}

func TestNStepFiles(t *testing.T) {
	saver := &pathSaver{}
	c, err := NewNStepFiles(2, saver, FilenameEnumerator(0, "ckpt/net",
		".gob"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Checkpoint(ts.TimeStep{}))
	}
	assert.Equal(t, []string{"ckpt/net1.gob", "ckpt/net2.gob"}, saver.paths)
}
