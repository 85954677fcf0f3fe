package network

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// checkpoint is the serialized form of an MLP
type checkpoint struct {
	Features    int
	Actions     int
	HiddenSizes []int
	Biases      []bool
	Activations []*Activation
	Weights     [][]float64
}

// Save writes the architecture and weights of the MLP to path. The
// file is written next to its destination and then renamed so that an
// interrupted save never leaves a truncated checkpoint behind.
func (m *MLP) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "save: could not create checkpoint directory")
	}

	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "save: could not create checkpoint file")
	}
	tmp := file.Name()
	defer os.Remove(tmp)

	c := checkpoint{
		Features:    m.numInputs,
		Actions:     m.numOutputs,
		HiddenSizes: m.hiddenSizes,
		Biases:      m.biases,
		Activations: m.activations,
		Weights:     m.weights(),
	}
	if err := gob.NewEncoder(file).Encode(c); err != nil {
		file.Close()
		return errors.Wrap(err, "save: could not encode checkpoint")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "save: could not write checkpoint")
	}

	return errors.Wrap(os.Rename(tmp, path), "save: could not move checkpoint")
}

// Load replaces the weights of the MLP with those stored at path. The
// checkpoint must have been saved by an MLP of the same architecture,
// otherwise the returned error has ErrIncompatible as its cause and the
// MLP is left unchanged.
func (m *MLP) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "load: could not open checkpoint")
	}
	defer file.Close()

	var c checkpoint
	if err := gob.NewDecoder(file).Decode(&c); err != nil {
		return errors.Wrapf(err, "load: could not decode checkpoint %v", path)
	}

	if err := m.compatible(c); err != nil {
		return errors.WithMessage(err, "load")
	}
	return errors.WithMessage(m.setWeights(c.Weights), "load")
}

// compatible returns an error if the checkpoint describes a different
// architecture than the MLP
func (m *MLP) compatible(c checkpoint) error {
	if c.Features != m.numInputs || c.Actions != m.numOutputs {
		return errors.Wrapf(ErrIncompatible, "checkpoint maps %v features "+
			"to %v actions, network maps %v to %v", c.Features, c.Actions,
			m.numInputs, m.numOutputs)
	}
	if len(c.HiddenSizes) != len(m.hiddenSizes) ||
		len(c.Biases) != len(m.biases) ||
		len(c.Activations) != len(m.activations) {
		return errors.Wrapf(ErrIncompatible, "checkpoint has %v hidden "+
			"layers, network has %v", len(c.HiddenSizes), len(m.hiddenSizes))
	}
	for i := range m.hiddenSizes {
		if c.HiddenSizes[i] != m.hiddenSizes[i] ||
			c.Biases[i] != m.biases[i] ||
			c.Activations[i].String() != m.activations[i].String() {
			return errors.Wrapf(ErrIncompatible, "hidden layer %v differs", i)
		}
	}
	return nil
}
