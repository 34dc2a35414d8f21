// Package dropout implements inverted dropout: active units are scaled by
// 1/(1-p) during training and the layer is the identity in eval mode.
package dropout

import (
	"math/rand"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Layer drops activations with probability P.
type Layer struct {
	P   float64
	rng *rand.Rand

	mask []float64
}

// New builds the layer with its own deterministic stream from rng.
func New(rng *rand.Rand, p float64) *Layer {
	return &Layer{P: p, rng: rng}
}

// Forward applies the mask in training mode, passes through otherwise.
func (l *Layer) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	if !train || l.P <= 0 {
		l.mask = nil
		return x
	}
	out := tensor.New(x.Shape...)
	l.mask = make([]float64, len(x.Data))
	scale := 1 / (1 - l.P)
	for i, v := range x.Data {
		if l.rng.Float64() >= l.P {
			l.mask[i] = scale
			out.Data[i] = v * scale
		}
	}
	return out
}

// Backward applies the same mask to the gradient.
func (l *Layer) Backward(grad *tensor.Dense) *tensor.Dense {
	if l.mask == nil {
		return grad
	}
	dx := tensor.New(grad.Shape...)
	for i, v := range grad.Data {
		dx.Data[i] = v * l.mask[i]
	}
	return dx
}

// Params returns nil.
func (l *Layer) Params() []*layer.Param { return nil }
