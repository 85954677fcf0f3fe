// Package network implements the multi-layered perceptron which
// approximates one action value per discrete action.
package network

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrIncompatible is the cause of errors returned when weights are
// loaded into an MLP of a different architecture
var ErrIncompatible = errors.New("incompatible network architecture")

// MLP implements a multi-layered perceptron with one output node for
// each action. The MLP owns a training graph of a fixed batch size,
// which computes the mean squared error between its predictions and
// a matrix of targets, and lazily builds an inference graph for each
// batch size it is asked to predict on. Inference graphs share no
// memory with the training graph; their weights are refreshed from the
// training graph whenever the training weights have changed.
type MLP struct {
	numInputs  int
	numOutputs int
	batchSize  int

	// Data needed for gobbing
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	target     *G.Node
	prediction *G.Node
	loss       *G.Node
	lossVal    G.Value
	learnables G.Nodes
	vm         G.VM
	solver     G.Solver

	inference map[int]*inferenceNet

	// version is incremented each time the training weights change
	version int
}

// inferenceNet is a forward-only copy of an MLP for a single batch size
type inferenceNet struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	prediction *G.Node
	predVal    G.Value
	vm         G.VM
	version    int
}

// NewMLP creates and returns a new multi-layered perceptron that maps
// features inputs to actions outputs.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit is always added so that the network
// outputs one value per action. The function works such that for index
// i, hiddenSizes[i] is the number of nodes in hidden layer i; biases[i]
// is true if the hidden layer will contain a bias unit and false
// otherwise; and activations[i] is the activation function for hidden
// layer i. The parameter init determines the weight initialization
// scheme, and batch is the number of rows that Train expects.
func NewMLP(features, actions, batch int, hiddenSizes []int, biases []bool,
	activations []*Activation, init G.InitWFn,
	solver G.Solver) (*MLP, error) {
	if features < 1 || actions < 1 || batch < 1 {
		return nil, fmt.Errorf("newMLP: features, actions, and batch must "+
			"be positive \n\thave(%v, %v, %v)", features, actions, batch)
	}
	if len(hiddenSizes) != len(activations) {
		msg := "newMLP: invalid number of activations\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newMLP: invalid number of biases\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	for i, size := range hiddenSizes {
		if size < 1 {
			return nil, fmt.Errorf("newMLP: hidden layer %v has size %v",
				i, size)
		}
	}
	if solver == nil {
		return nil, fmt.Errorf("newMLP: solver must not be nil")
	}

	m := &MLP{
		numInputs:   features,
		numOutputs:  actions,
		batchSize:   batch,
		hiddenSizes: append([]int{}, hiddenSizes...),
		biases:      append([]bool{}, biases...),
		activations: append([]*Activation{}, activations...),
		solver:      solver,
		inference:   make(map[int]*inferenceNet),
	}

	if err := m.buildTrainGraph(init); err != nil {
		return nil, fmt.Errorf("newMLP: %v", err)
	}
	return m, nil
}

// buildTrainGraph creates the training graph, its loss and gradients,
// and compiles it
func (m *MLP) buildTrainGraph(init G.InitWFn) error {
	m.g = G.NewGraph()

	m.input = G.NewMatrix(m.g, tensor.Float64,
		G.WithShape(m.batchSize, m.numInputs), G.WithName("input"),
		G.WithInit(G.Zeroes()))
	m.target = G.NewMatrix(m.g, tensor.Float64,
		G.WithShape(m.batchSize, m.numOutputs), G.WithName("target"),
		G.WithInit(G.Zeroes()))

	sizes := append(append([]int{}, m.hiddenSizes...), m.numOutputs)
	biases := append(append([]bool{}, m.biases...), true)
	activations := append(append([]*Activation{}, m.activations...),
		Identity())

	m.layers = make([]*fcLayer, len(sizes))
	in := m.numInputs
	for i := range sizes {
		m.layers[i] = newFCLayer(m.g, in, sizes[i], i, biases[i],
			activations[i], init)
		in = sizes[i]
	}

	pred, err := forward(m.input, m.layers)
	if err != nil {
		return err
	}
	m.prediction = pred

	// Mean squared error over every entry of the batch x actions matrix
	diff, err := G.Sub(m.prediction, m.target)
	if err != nil {
		return err
	}
	sq, err := G.Square(diff)
	if err != nil {
		return err
	}
	if m.loss, err = G.Mean(sq); err != nil {
		return err
	}
	G.Read(m.loss, &m.lossVal)

	m.learnables = make(G.Nodes, 0, 2*len(m.layers))
	for _, layer := range m.layers {
		m.learnables = append(m.learnables, layer.learnables()...)
	}

	if _, err := G.Grad(m.loss, m.learnables...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}

	m.vm = G.NewTapeMachine(m.g, G.BindDualValues(m.learnables...))
	return nil
}

// forward runs the input through each layer in turn
func forward(input *G.Node, layers []*fcLayer) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}
	return pred, nil
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (m *MLP) Features() int {
	return m.numInputs
}

// Actions returns the number of outputs from the network
func (m *MLP) Actions() int {
	return m.numOutputs
}

// BatchSize returns the number of rows expected by Train
func (m *MLP) BatchSize() int {
	return m.batchSize
}

// Loss returns the loss of the most recent training step
func (m *MLP) Loss() float64 {
	if m.lossVal == nil {
		return 0
	}
	switch loss := m.lossVal.Data().(type) {
	case float64:
		return loss
	case []float64:
		return loss[0]
	}
	return 0
}

// inferenceFor returns the inference network for batches of the given
// size, creating and compiling it if needed
func (m *MLP) inferenceFor(batch int) (*inferenceNet, error) {
	if net, ok := m.inference[batch]; ok {
		return net, nil
	}

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, m.numInputs), G.WithName("input"),
		G.WithInit(G.Zeroes()))

	layers := make([]*fcLayer, len(m.layers))
	for i := range m.layers {
		layers[i] = m.layers[i].cloneTo(g, i)
	}

	pred, err := forward(input, layers)
	if err != nil {
		return nil, fmt.Errorf("inferenceFor: %v", err)
	}

	net := &inferenceNet{
		g:          g,
		layers:     layers,
		input:      input,
		prediction: pred,
		version:    -1,
	}
	G.Read(net.prediction, &net.predVal)
	net.vm = G.NewTapeMachine(g)

	m.inference[batch] = net
	return net, nil
}

// sync copies the training weights into an inference network
func (m *MLP) sync(net *inferenceNet) error {
	if net.version == m.version {
		return nil
	}

	i := 0
	for _, layer := range net.layers {
		for _, node := range layer.learnables() {
			weights := m.learnables[i].Value().(*tensor.Dense)
			if err := G.Let(node, weights.Clone().(*tensor.Dense)); err != nil {
				return err
			}
			i++
		}
	}
	net.version = m.version
	return nil
}

// Predict returns the action values of each row of states. The
// returned matrix has one row per state and one column per action.
func (m *MLP) Predict(states mat.Matrix) (*mat.Dense, error) {
	rows, cols := states.Dims()
	if cols != m.numInputs {
		return nil, fmt.Errorf("predict: invalid number of features "+
			"\n\twant(%v) \n\thave(%v)", m.numInputs, cols)
	}

	net, err := m.inferenceFor(rows)
	if err != nil {
		return nil, err
	}
	if err := m.sync(net); err != nil {
		return nil, errors.Wrap(err, "predict: could not set weights")
	}

	inputTensor := tensor.New(
		tensor.WithBacking(flatten(states)),
		tensor.WithShape(rows, cols),
	)
	if err := G.Let(net.input, inputTensor); err != nil {
		return nil, errors.Wrap(err, "predict: could not set input")
	}

	defer net.vm.Reset()
	if err := net.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "predict: could not run forward pass")
	}

	values := make([]float64, rows*m.numOutputs)
	copy(values, net.predVal.Data().([]float64))
	return mat.NewDense(rows, m.numOutputs, values), nil
}

// Train performs a single solver step on the mean squared error
// between the network's predictions on states and targets
func (m *MLP) Train(states, targets mat.Matrix) error {
	rows, cols := states.Dims()
	if rows != m.batchSize || cols != m.numInputs {
		return fmt.Errorf("train: invalid state batch shape \n\twant(%v, %v)"+
			"\n\thave(%v, %v)", m.batchSize, m.numInputs, rows, cols)
	}
	rows, cols = targets.Dims()
	if rows != m.batchSize || cols != m.numOutputs {
		return fmt.Errorf("train: invalid target batch shape \n\twant(%v, %v)"+
			"\n\thave(%v, %v)", m.batchSize, m.numOutputs, rows, cols)
	}

	stateTensor := tensor.New(
		tensor.WithBacking(flatten(states)),
		tensor.WithShape(m.batchSize, m.numInputs),
	)
	if err := G.Let(m.input, stateTensor); err != nil {
		return errors.Wrap(err, "train: could not set input")
	}
	targetTensor := tensor.New(
		tensor.WithBacking(flatten(targets)),
		tensor.WithShape(m.batchSize, m.numOutputs),
	)
	if err := G.Let(m.target, targetTensor); err != nil {
		return errors.Wrap(err, "train: could not set target")
	}

	defer m.vm.Reset()
	if err := m.vm.RunAll(); err != nil {
		return errors.Wrap(err, "train: could not run training graph")
	}
	if err := m.solver.Step(G.NodesToValueGrads(m.learnables)); err != nil {
		return errors.Wrap(err, "train: could not step solver")
	}
	m.version++

	return nil
}

// weights returns a copy of the value of each learnable node, in layer
// order with each layer's weights before its bias
func (m *MLP) weights() [][]float64 {
	out := make([][]float64, len(m.learnables))
	for i, node := range m.learnables {
		data := node.Value().Data().([]float64)
		out[i] = append([]float64{}, data...)
	}
	return out
}

// setWeights sets the value of each learnable node
func (m *MLP) setWeights(weights [][]float64) error {
	if len(weights) != len(m.learnables) {
		return errors.Wrapf(ErrIncompatible, "want %v weight tensors, have %v",
			len(m.learnables), len(weights))
	}
	for i, node := range m.learnables {
		shape := node.Shape()
		if len(weights[i]) != shape.TotalSize() {
			return errors.Wrapf(ErrIncompatible, "tensor %v has %v values, "+
				"want %v", node.Name(), len(weights[i]), shape.TotalSize())
		}
		value := tensor.New(
			tensor.WithBacking(append([]float64{}, weights[i]...)),
			tensor.WithShape(shape.Clone()...),
		)
		if err := G.Let(node, value); err != nil {
			return errors.Wrapf(err, "could not set %v", node.Name())
		}
	}
	m.version++
	return nil
}

// flatten returns the row-major data of a matrix
func flatten(x mat.Matrix) []float64 {
	rows, cols := x.Dims()
	if dense, ok := x.(*mat.Dense); ok {
		raw := dense.RawMatrix()
		if raw.Stride == cols {
			return append([]float64{}, raw.Data[:rows*cols]...)
		}
	}

	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, x.At(i, j))
		}
	}
	return data
}
