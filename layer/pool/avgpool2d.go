// Package pool implements average pooling over [batch, channel, height,
// width] tensors.
package pool

import (
	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// AvgPool2d averages over kh x kw windows with stride sh x sw, no padding.
type AvgPool2d struct {
	KH, KW, SH, SW int

	inShape []int
}

// New builds the pooling layer.
func New(kh, kw, sh, sw int) *AvgPool2d {
	return &AvgPool2d{KH: kh, KW: kw, SH: sh, SW: sw}
}

// OutSize reports the output spatial dimensions for an input of h x w.
func (l *AvgPool2d) OutSize(h, w int) (int, int) {
	return (h-l.KH)/l.SH + 1, (w-l.KW)/l.SW + 1
}

// Forward pools x shaped [B, C, H, W].
func (l *AvgPool2d) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	b, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	outH, outW := l.OutSize(h, w)
	l.inShape = x.Shape
	out := tensor.New(b, c, outH, outW)
	norm := 1 / float64(l.KH*l.KW)
	for i := 0; i < b*c; i++ {
		src := x.Data[i*h*w : (i+1)*h*w]
		dst := out.Data[i*outH*outW : (i+1)*outH*outW]
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				var s float64
				for kh := 0; kh < l.KH; kh++ {
					row := src[(oh*l.SH+kh)*w+ow*l.SW:]
					for kw := 0; kw < l.KW; kw++ {
						s += row[kw]
					}
				}
				dst[oh*outW+ow] = s * norm
			}
		}
	}
	return out
}

// Backward spreads each output gradient uniformly over its window.
func (l *AvgPool2d) Backward(grad *tensor.Dense) *tensor.Dense {
	b, c, h, w := l.inShape[0], l.inShape[1], l.inShape[2], l.inShape[3]
	outH, outW := l.OutSize(h, w)
	dx := tensor.New(l.inShape...)
	norm := 1 / float64(l.KH*l.KW)
	for i := 0; i < b*c; i++ {
		g := grad.Data[i*outH*outW : (i+1)*outH*outW]
		dst := dx.Data[i*h*w : (i+1)*h*w]
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				v := g[oh*outW+ow] * norm
				for kh := 0; kh < l.KH; kh++ {
					row := dst[(oh*l.SH+kh)*w+ow*l.SW:]
					for kw := 0; kw < l.KW; kw++ {
						row[kw] += v
					}
				}
			}
		}
	}
	return dx
}

// Params returns nil, pooling has no parameters.
func (l *AvgPool2d) Params() []*layer.Param { return nil }
