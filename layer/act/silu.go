// Package act implements the activation layers.
package act

import (
	"math"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// SiLU is x * sigmoid(x).
type SiLU struct {
	x *tensor.Dense
}

// NewSiLU builds the activation.
func NewSiLU() *SiLU { return &SiLU{} }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// Forward applies the activation elementwise.
func (l *SiLU) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	l.x = x
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = v * sigmoid(v)
	}
	return out
}

// Backward multiplies by d(silu)/dx = s(x) * (1 + x*(1-s(x))).
func (l *SiLU) Backward(grad *tensor.Dense) *tensor.Dense {
	dx := tensor.New(grad.Shape...)
	for i, v := range grad.Data {
		s := sigmoid(l.x.Data[i])
		dx.Data[i] = v * s * (1 + l.x.Data[i]*(1-s))
	}
	return dx
}

// Params returns nil.
func (l *SiLU) Params() []*layer.Param { return nil }
