package norm

import (
	"fmt"
	"math"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// LayerNorm normalizes each feature vector of length E independently.
// Inputs of any shape are treated as [n, E] rows.
type LayerNorm struct {
	E     int
	Gamma *layer.Param
	Beta  *layer.Param

	xhat  *tensor.Dense
	invSD []float64
	shape []int
}

// NewLayerNorm builds the layer for feature size e, gamma=1, beta=0.
func NewLayerNorm(e int) *LayerNorm {
	l := &LayerNorm{
		E:     e,
		Gamma: layer.NewParam(fmt.Sprintf("ln%d.gamma", e), e),
		Beta:  layer.NewParam(fmt.Sprintf("ln%d.beta", e), e),
	}
	for i := range l.Gamma.Value.Data {
		l.Gamma.Value.Data[i] = 1
	}
	return l
}

// Forward normalizes every length-E row of x.
func (l *LayerNorm) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	n := x.Size() / l.E
	l.shape = x.Shape
	out := tensor.New(x.Shape...)
	l.xhat = tensor.New(n, l.E)
	l.invSD = make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.Data[i*l.E : (i+1)*l.E]
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(l.E)
		var variance float64
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(l.E)
		inv := 1 / math.Sqrt(variance+eps)
		l.invSD[i] = inv
		xh := l.xhat.Data[i*l.E : (i+1)*l.E]
		dst := out.Data[i*l.E : (i+1)*l.E]
		for j, v := range row {
			h := (v - mean) * inv
			xh[j] = h
			dst[j] = l.Gamma.Value.Data[j]*h + l.Beta.Value.Data[j]
		}
	}
	return out
}

// Backward accumulates gamma/beta gradients and returns dL/dx.
func (l *LayerNorm) Backward(grad *tensor.Dense) *tensor.Dense {
	n := grad.Size() / l.E
	dx := tensor.New(l.shape...)
	e := float64(l.E)
	for i := 0; i < n; i++ {
		gy := grad.Data[i*l.E : (i+1)*l.E]
		xh := l.xhat.Data[i*l.E : (i+1)*l.E]
		var sumDxhat, sumDxhatXhat float64
		for j, v := range gy {
			l.Gamma.Grad.Data[j] += v * xh[j]
			l.Beta.Grad.Data[j] += v
			dxh := v * l.Gamma.Value.Data[j]
			sumDxhat += dxh
			sumDxhatXhat += dxh * xh[j]
		}
		inv := l.invSD[i]
		dst := dx.Data[i*l.E : (i+1)*l.E]
		for j, v := range gy {
			dxh := v * l.Gamma.Value.Data[j]
			dst[j] = inv * (dxh - sumDxhat/e - xh[j]*sumDxhatXhat/e)
		}
	}
	return dx
}

// Params returns gamma and beta.
func (l *LayerNorm) Params() []*layer.Param { return []*layer.Param{l.Gamma, l.Beta} }
