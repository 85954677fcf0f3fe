package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node // nil if the layer has no bias unit
	act     *Activation
}

// newFCLayer adds the weights (and optionally the bias) of a fully
// connected layer mapping in inputs to out outputs to the graph g
func newFCLayer(g *G.ExprGraph, in, out, index int, bias bool,
	act *Activation, init G.InitWFn) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(fmt.Sprintf("L%dW", index)),
		G.WithInit(init),
	)

	var b *G.Node
	if bias {
		b = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(1, out),
			G.WithName(fmt.Sprintf("L%dB", index)),
			G.WithInit(G.Zeroes()),
		)
	}

	return &fcLayer{weights: weights, bias: b, act: act}
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, err
	}
	if f.bias != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		if x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0}); err != nil {
			return nil, err
		}
	}
	return f.act.fwd(x)
}

// cloneTo adds a layer with the same shapes and activation as f to the
// graph g. Weights of the clone are zero until set.
func (f *fcLayer) cloneTo(g *G.ExprGraph, index int) *fcLayer {
	shape := f.weights.Shape()
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(shape...),
		G.WithName(fmt.Sprintf("L%dW", index)),
		G.WithInit(G.Zeroes()),
	)

	var bias *G.Node
	if f.bias != nil {
		bias = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(f.bias.Shape()...),
			G.WithName(fmt.Sprintf("L%dB", index)),
			G.WithInit(G.Zeroes()),
		)
	}

	return &fcLayer{weights: weights, bias: bias, act: f.act}
}

// learnables returns the weight and bias nodes of the layer
func (f *fcLayer) learnables() G.Nodes {
	if f.bias == nil {
		return G.Nodes{f.weights}
	}
	return G.Nodes{f.weights, f.bias}
}
