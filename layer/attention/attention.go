// Package attention implements multi-head self-attention over
// [batch, tokens, embed] tensors.
package attention

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Layer is one self-attention stage with E embed size and H heads.
type Layer struct {
	E, H int

	WQ, WK, WV, WO *layer.Param // [E, E]
	BQ, BK, BV, BO *layer.Param // [E]

	x          *tensor.Dense
	q, k, v, o *tensor.Dense // [B, N, E]
	attn       [][]*mat.Dense
}

// New builds the layer; embed must be divisible by heads.
func New(rng *rand.Rand, embed, heads int) (*Layer, error) {
	if heads < 1 || embed%heads != 0 {
		return nil, fmt.Errorf("attention: embed size %d not divisible by %d heads", embed, heads)
	}
	l := &Layer{E: embed, H: heads}
	mk := func(n string) (*layer.Param, *layer.Param) {
		w := layer.NewParam("attn."+n+".weight", embed, embed)
		b := layer.NewParam("attn."+n+".bias", embed)
		layer.KaimingUniform(rng, w.Value, embed)
		return w, b
	}
	l.WQ, l.BQ = mk("q")
	l.WK, l.BK = mk("k")
	l.WV, l.BV = mk("v")
	l.WO, l.BO = mk("o")
	return l, nil
}

// MustNew is New, panicking on a bad head count.
func MustNew(rng *rand.Rand, embed, heads int) *Layer {
	l, err := New(rng, embed, heads)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layer) project(x *tensor.Dense, w, b *layer.Param) *tensor.Dense {
	n := x.Size() / l.E
	out := tensor.New(n, l.E)
	out.Matrix(n, l.E).Mul(x.Matrix(n, l.E), w.Value.Matrix(l.E, l.E).T())
	for i := 0; i < n; i++ {
		row := out.Data[i*l.E : (i+1)*l.E]
		for j := range row {
			row[j] += b.Value.Data[j]
		}
	}
	return out
}

// head copies head h of the [N, E] rows starting at off into an [N, dh] matrix.
func (l *Layer) head(t *tensor.Dense, off, n, h int) *mat.Dense {
	dh := l.E / l.H
	out := mat.NewDense(n, dh, nil)
	for i := 0; i < n; i++ {
		row := t.Data[off+i*l.E+h*dh : off+i*l.E+(h+1)*dh]
		for j, val := range row {
			out.Set(i, j, val)
		}
	}
	return out
}

func (l *Layer) addHead(t *tensor.Dense, m *mat.Dense, off, n, h int) {
	dh := l.E / l.H
	for i := 0; i < n; i++ {
		for j := 0; j < dh; j++ {
			t.Data[off+i*l.E+h*dh+j] += m.At(i, j)
		}
	}
}

// Forward computes self-attention over x shaped [B, N, E].
func (l *Layer) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	b, n := x.Shape[0], x.Shape[1]
	dh := l.E / l.H
	scale := 1 / math.Sqrt(float64(dh))

	l.x = x
	l.q = l.project(x, l.WQ, l.BQ)
	l.k = l.project(x, l.WK, l.BK)
	l.v = l.project(x, l.WV, l.BV)
	l.o = tensor.New(b, n, l.E)
	l.attn = make([][]*mat.Dense, b)

	for bi := 0; bi < b; bi++ {
		off := bi * n * l.E
		l.attn[bi] = make([]*mat.Dense, l.H)
		for h := 0; h < l.H; h++ {
			qh := l.head(l.q, off, n, h)
			kh := l.head(l.k, off, n, h)
			vh := l.head(l.v, off, n, h)

			var scores mat.Dense
			scores.Mul(qh, kh.T())
			scores.Scale(scale, &scores)
			softmaxRows(&scores)
			l.attn[bi][h] = &scores

			var oh mat.Dense
			oh.Mul(&scores, vh)
			l.addHead(l.o, &oh, off, n, h)
		}
	}

	out := l.project(l.o, l.WO, l.BO)
	return out.Reshape(b, n, l.E)
}

// softmaxRows applies a numerically stable softmax to each row in place.
func softmaxRows(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		maxv := math.Inf(-1)
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v > maxv {
				maxv = v
			}
		}
		var sum float64
		for j := 0; j < c; j++ {
			e := math.Exp(m.At(i, j) - maxv)
			m.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)/sum)
		}
	}
}

// backProject accumulates dW += g^T * in, db += colsum(g) and returns g*W.
func (l *Layer) backProject(g, in *tensor.Dense, w, b *layer.Param) *tensor.Dense {
	n := g.Size() / l.E
	var dw mat.Dense
	dw.Mul(g.Matrix(n, l.E).T(), in.Matrix(n, l.E))
	for i := 0; i < l.E; i++ {
		for j := 0; j < l.E; j++ {
			w.Grad.Data[i*l.E+j] += dw.At(i, j)
		}
	}
	for i := 0; i < n; i++ {
		row := g.Data[i*l.E : (i+1)*l.E]
		for j, v := range row {
			b.Grad.Data[j] += v
		}
	}
	dx := tensor.New(n, l.E)
	dx.Matrix(n, l.E).Mul(g.Matrix(n, l.E), w.Value.Matrix(l.E, l.E))
	return dx
}

// Backward propagates through output projection, attention weights and the
// three input projections, returning dL/dx shaped like the input.
func (l *Layer) Backward(grad *tensor.Dense) *tensor.Dense {
	b, n := l.x.Shape[0], l.x.Shape[1]
	dh := l.E / l.H
	scale := 1 / math.Sqrt(float64(dh))

	do := l.backProject(grad.Reshape(b*n, l.E), l.o.Reshape(b*n, l.E), l.WO, l.BO)

	dq := tensor.New(b*n, l.E)
	dk := tensor.New(b*n, l.E)
	dv := tensor.New(b*n, l.E)

	for bi := 0; bi < b; bi++ {
		off := bi * n * l.E
		for h := 0; h < l.H; h++ {
			qh := l.head(l.q, off, n, h)
			kh := l.head(l.k, off, n, h)
			vh := l.head(l.v, off, n, h)
			doh := l.head(do, off, n, h)
			a := l.attn[bi][h]

			var da, dvh mat.Dense
			da.Mul(doh, vh.T())
			dvh.Mul(a.T(), doh)

			// Softmax backward: ds = a * (da - rowsum(da*a)).
			ds := mat.NewDense(n, n, nil)
			for i := 0; i < n; i++ {
				var dot float64
				for j := 0; j < n; j++ {
					dot += da.At(i, j) * a.At(i, j)
				}
				for j := 0; j < n; j++ {
					ds.Set(i, j, a.At(i, j)*(da.At(i, j)-dot))
				}
			}

			var dqh, dkh mat.Dense
			dqh.Mul(ds, kh)
			dqh.Scale(scale, &dqh)
			dkh.Mul(ds.T(), qh)
			dkh.Scale(scale, &dkh)

			l.addHead(dq, &dqh, off, n, h)
			l.addHead(dk, &dkh, off, n, h)
			l.addHead(dv, &dvh, off, n, h)
		}
	}

	x2 := l.x.Reshape(b*n, l.E)
	dx := l.backProject(dq, x2, l.WQ, l.BQ)
	dxk := l.backProject(dk, x2, l.WK, l.BK)
	dxv := l.backProject(dv, x2, l.WV, l.BV)
	for i := range dx.Data {
		dx.Data[i] += dxk.Data[i] + dxv.Data[i]
	}
	return dx.Reshape(b, n, l.E)
}

// Params returns the four projection weights and biases.
func (l *Layer) Params() []*layer.Param {
	return []*layer.Param{l.WQ, l.BQ, l.WK, l.BK, l.WV, l.BV, l.WO, l.BO}
}
