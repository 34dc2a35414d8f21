// Package linear implements the dense affine layer y = x*W^T + b.
package linear

import (
	"fmt"
	"math/rand"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Layer maps [n, in] inputs to [n, out] outputs.
type Layer struct {
	In, Out int
	Weight  *layer.Param // [out, in]
	Bias    *layer.Param // [out]

	x *tensor.Dense // cached input
}

// New builds a linear layer with Kaiming-uniform weights.
func New(rng *rand.Rand, in, out int) *Layer {
	l := &Layer{
		In:     in,
		Out:    out,
		Weight: layer.NewParam(fmt.Sprintf("linear%dx%d.weight", out, in), out, in),
		Bias:   layer.NewParam(fmt.Sprintf("linear%dx%d.bias", out, in), out),
	}
	layer.KaimingUniform(rng, l.Weight.Value, in)
	layer.KaimingUniform(rng, l.Bias.Value, in)
	return l
}

// Forward computes x*W^T + b for x shaped [n, in].
func (l *Layer) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	n := x.Size() / l.In
	x = x.Reshape(n, l.In)
	l.x = x
	out := tensor.New(n, l.Out)
	out.Matrix(n, l.Out).Mul(x.Matrix(n, l.In), l.Weight.Value.Matrix(l.Out, l.In).T())
	for i := 0; i < n; i++ {
		row := out.Data[i*l.Out : (i+1)*l.Out]
		for j := range row {
			row[j] += l.Bias.Value.Data[j]
		}
	}
	return out
}

// Backward returns dL/dx and accumulates dL/dW, dL/db.
func (l *Layer) Backward(grad *tensor.Dense) *tensor.Dense {
	n := l.x.Shape[0]
	g := grad.Reshape(n, l.Out)

	// dW += g^T * x
	dw := tensor.New(l.Out, l.In)
	dw.Matrix(l.Out, l.In).Mul(g.Matrix(n, l.Out).T(), l.x.Matrix(n, l.In))
	for i, v := range dw.Data {
		l.Weight.Grad.Data[i] += v
	}
	// db += column sums of g
	for i := 0; i < n; i++ {
		row := g.Data[i*l.Out : (i+1)*l.Out]
		for j, v := range row {
			l.Bias.Grad.Data[j] += v
		}
	}
	// dx = g * W
	dx := tensor.New(n, l.In)
	dx.Matrix(n, l.In).Mul(g.Matrix(n, l.Out), l.Weight.Value.Matrix(l.Out, l.In))
	return dx
}

// Params returns weight and bias.
func (l *Layer) Params() []*layer.Param { return []*layer.Param{l.Weight, l.Bias} }
