// Package norm implements the normalization layers: BatchNorm2d over
// [batch, channel, height, width] activations and LayerNorm over feature
// vectors.
package norm

import (
	"fmt"
	"math"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

const (
	eps      = 1e-5
	momentum = 0.1
)

// BatchNorm2d normalizes per channel over batch and spatial positions,
// tracking running statistics for evaluation.
type BatchNorm2d struct {
	C     int
	Gamma *layer.Param
	Beta  *layer.Param

	// Running statistics, updated in training mode, used in eval mode.
	RunningMean *tensor.Dense
	RunningVar  *tensor.Dense

	x     *tensor.Dense
	xhat  *tensor.Dense
	mean  []float64
	invSD []float64
	train bool
}

// NewBatchNorm2d builds the layer for c channels, gamma=1, beta=0,
// running variance 1.
func NewBatchNorm2d(c int) *BatchNorm2d {
	l := &BatchNorm2d{
		C:           c,
		Gamma:       layer.NewParam(fmt.Sprintf("bn%d.gamma", c), c),
		Beta:        layer.NewParam(fmt.Sprintf("bn%d.beta", c), c),
		RunningMean: tensor.New(c),
		RunningVar:  tensor.New(c),
	}
	for i := 0; i < c; i++ {
		l.Gamma.Value.Data[i] = 1
		l.RunningVar.Data[i] = 1
	}
	return l
}

// Forward normalizes x shaped [B, C, H, W].
func (l *BatchNorm2d) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	b, hw := x.Shape[0], x.Shape[2]*x.Shape[3]
	n := b * hw
	l.x, l.train = x, train
	l.mean = make([]float64, l.C)
	l.invSD = make([]float64, l.C)
	out := tensor.New(x.Shape...)
	l.xhat = tensor.New(x.Shape...)

	for c := 0; c < l.C; c++ {
		var mean, variance float64
		if train {
			for i := 0; i < b; i++ {
				for _, v := range x.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw] {
					mean += v
				}
			}
			mean /= float64(n)
			for i := 0; i < b; i++ {
				for _, v := range x.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw] {
					d := v - mean
					variance += d * d
				}
			}
			variance /= float64(n)

			l.RunningMean.Data[c] = (1-momentum)*l.RunningMean.Data[c] + momentum*mean
			unbiased := variance
			if n > 1 {
				unbiased = variance * float64(n) / float64(n-1)
			}
			l.RunningVar.Data[c] = (1-momentum)*l.RunningVar.Data[c] + momentum*unbiased
		} else {
			mean = l.RunningMean.Data[c]
			variance = l.RunningVar.Data[c]
		}

		l.mean[c] = mean
		inv := 1 / math.Sqrt(variance+eps)
		l.invSD[c] = inv
		g, be := l.Gamma.Value.Data[c], l.Beta.Value.Data[c]
		for i := 0; i < b; i++ {
			src := x.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			xh := l.xhat.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			dst := out.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			for j, v := range src {
				h := (v - mean) * inv
				xh[j] = h
				dst[j] = g*h + be
			}
		}
	}
	return out
}

// Backward accumulates gamma/beta gradients and returns dL/dx.
func (l *BatchNorm2d) Backward(grad *tensor.Dense) *tensor.Dense {
	b, hw := l.x.Shape[0], l.x.Shape[2]*l.x.Shape[3]
	n := float64(b * hw)
	dx := tensor.New(l.x.Shape...)

	for c := 0; c < l.C; c++ {
		g := l.Gamma.Value.Data[c]
		var dgamma, dbeta, sumDxhat, sumDxhatXhat float64
		for i := 0; i < b; i++ {
			gy := grad.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			xh := l.xhat.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			for j, v := range gy {
				dgamma += v * xh[j]
				dbeta += v
				sumDxhat += v * g
				sumDxhatXhat += v * g * xh[j]
			}
		}
		l.Gamma.Grad.Data[c] += dgamma
		l.Beta.Grad.Data[c] += dbeta

		inv := l.invSD[c]
		for i := 0; i < b; i++ {
			gy := grad.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			xh := l.xhat.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			dst := dx.Data[(i*l.C+c)*hw : (i*l.C+c+1)*hw]
			if l.train {
				for j, v := range gy {
					dst[j] = inv * (v*g - sumDxhat/n - xh[j]*sumDxhatXhat/n)
				}
			} else {
				for j, v := range gy {
					dst[j] = v * g * inv
				}
			}
		}
	}
	return dx
}

// Params returns gamma and beta. Running statistics are state, not
// parameters, and are serialized separately.
func (l *BatchNorm2d) Params() []*layer.Param { return []*layer.Param{l.Gamma, l.Beta} }
