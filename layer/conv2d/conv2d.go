// Package conv2d implements a strided 2D convolution over [batch, channel,
// height, width] tensors, without padding. The spatial loops are lowered to
// matrix products via im2col.
package conv2d

import (
	"fmt"
	"math/rand"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Layer is one convolution stage.
type Layer struct {
	InC, OutC      int
	KH, KW, SH, SW int
	Weight         *layer.Param // [outC, inC*KH*KW]
	Bias           *layer.Param // [outC]

	x *tensor.Dense // cached input [B, inC, H, W]
}

// New builds a convolution with the given kernel and stride.
func New(rng *rand.Rand, inC, outC, kh, kw, sh, sw int) *Layer {
	name := fmt.Sprintf("conv%dx%dk%dx%d", outC, inC, kh, kw)
	l := &Layer{
		InC: inC, OutC: outC,
		KH: kh, KW: kw, SH: sh, SW: sw,
		Weight: layer.NewParam(name+".weight", outC, inC*kh*kw),
		Bias:   layer.NewParam(name+".bias", outC),
	}
	fanIn := inC * kh * kw
	layer.KaimingUniform(rng, l.Weight.Value, fanIn)
	layer.KaimingUniform(rng, l.Bias.Value, fanIn)
	return l
}

// OutSize reports the output spatial dimensions for an input of h x w.
func (l *Layer) OutSize(h, w int) (int, int) {
	return (h-l.KH)/l.SH + 1, (w-l.KW)/l.SW + 1
}

func (l *Layer) im2col(x []float64, h, w, outH, outW int) *tensor.Dense {
	rows := l.InC * l.KH * l.KW
	cols := tensor.New(rows, outH*outW)
	for c := 0; c < l.InC; c++ {
		for kh := 0; kh < l.KH; kh++ {
			for kw := 0; kw < l.KW; kw++ {
				row := cols.Data[((c*l.KH+kh)*l.KW+kw)*outH*outW:]
				for oh := 0; oh < outH; oh++ {
					src := x[c*h*w+(oh*l.SH+kh)*w+kw:]
					dst := row[oh*outW : (oh+1)*outW]
					for ow := range dst {
						dst[ow] = src[ow*l.SW]
					}
				}
			}
		}
	}
	return cols
}

// Forward convolves x shaped [B, inC, H, W].
func (l *Layer) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	b, h, w := x.Shape[0], x.Shape[2], x.Shape[3]
	outH, outW := l.OutSize(h, w)
	l.x = x
	out := tensor.New(b, l.OutC, outH, outW)
	rows := l.InC * l.KH * l.KW
	for i := 0; i < b; i++ {
		cols := l.im2col(x.Data[i*l.InC*h*w:(i+1)*l.InC*h*w], h, w, outH, outW)
		dst := tensor.FromSlice(out.Data[i*l.OutC*outH*outW:(i+1)*l.OutC*outH*outW], l.OutC, outH*outW)
		dst.Matrix(l.OutC, outH*outW).Mul(l.Weight.Value.Matrix(l.OutC, rows), cols.Matrix(rows, outH*outW))
		for c := 0; c < l.OutC; c++ {
			bias := l.Bias.Value.Data[c]
			row := dst.Data[c*outH*outW : (c+1)*outH*outW]
			for j := range row {
				row[j] += bias
			}
		}
	}
	return out
}

// Backward accumulates kernel gradients and returns the input gradient.
func (l *Layer) Backward(grad *tensor.Dense) *tensor.Dense {
	b, h, w := l.x.Shape[0], l.x.Shape[2], l.x.Shape[3]
	outH, outW := l.OutSize(h, w)
	rows := l.InC * l.KH * l.KW
	dx := tensor.New(b, l.InC, h, w)
	dw := tensor.New(l.OutC, rows)
	dcols := tensor.New(rows, outH*outW)
	for i := 0; i < b; i++ {
		g := tensor.FromSlice(grad.Data[i*l.OutC*outH*outW:(i+1)*l.OutC*outH*outW], l.OutC, outH*outW)
		cols := l.im2col(l.x.Data[i*l.InC*h*w:(i+1)*l.InC*h*w], h, w, outH, outW)

		dw.Matrix(l.OutC, rows).Mul(g.Matrix(l.OutC, outH*outW), cols.Matrix(rows, outH*outW).T())
		for j, v := range dw.Data {
			l.Weight.Grad.Data[j] += v
		}
		for c := 0; c < l.OutC; c++ {
			var s float64
			for _, v := range g.Data[c*outH*outW : (c+1)*outH*outW] {
				s += v
			}
			l.Bias.Grad.Data[c] += s
		}

		dcols.Matrix(rows, outH*outW).Mul(l.Weight.Value.Matrix(l.OutC, rows).T(), g.Matrix(l.OutC, outH*outW))
		// col2im: scatter-add the column gradients back to input positions.
		xg := dx.Data[i*l.InC*h*w : (i+1)*l.InC*h*w]
		for c := 0; c < l.InC; c++ {
			for kh := 0; kh < l.KH; kh++ {
				for kw := 0; kw < l.KW; kw++ {
					row := dcols.Data[((c*l.KH+kh)*l.KW+kw)*outH*outW:]
					for oh := 0; oh < outH; oh++ {
						dst := xg[c*h*w+(oh*l.SH+kh)*w+kw:]
						src := row[oh*outW : (oh+1)*outW]
						for ow, v := range src {
							dst[ow*l.SW] += v
						}
					}
				}
			}
		}
	}
	return dx
}

// Params returns kernel and bias.
func (l *Layer) Params() []*layer.Param { return []*layer.Param{l.Weight, l.Bias} }
