// Package posenc implements positional encodings added to [batch, tokens,
// embed] tensors: the deterministic sinusoidal table and a learned variant.
package posenc

import (
	"math"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Sinusoidal adds the fixed sin/cos position table.
type Sinusoidal struct {
	E  int
	pe *tensor.Dense // [maxLen, E]
}

// NewSinusoidal precomputes the table for up to maxLen tokens.
func NewSinusoidal(embed, maxLen int) *Sinusoidal {
	pe := tensor.New(maxLen, embed)
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < embed; i += 2 {
			div := math.Exp(float64(i) * -math.Log(10000.0) / float64(embed))
			pe.Data[pos*embed+i] = math.Sin(float64(pos) * div)
			if i+1 < embed {
				pe.Data[pos*embed+i+1] = math.Cos(float64(pos) * div)
			}
		}
	}
	return &Sinusoidal{E: embed, pe: pe}
}

// Forward adds the table to x shaped [B, N, E].
func (l *Sinusoidal) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	b, n := x.Shape[0], x.Shape[1]
	out := tensor.New(x.Shape...)
	for bi := 0; bi < b; bi++ {
		for i := 0; i < n; i++ {
			src := x.Data[(bi*n+i)*l.E : (bi*n+i+1)*l.E]
			pe := l.pe.Data[i*l.E : (i+1)*l.E]
			dst := out.Data[(bi*n+i)*l.E : (bi*n+i+1)*l.E]
			for j, v := range src {
				dst[j] = v + pe[j]
			}
		}
	}
	return out
}

// Backward passes the gradient through unchanged.
func (l *Sinusoidal) Backward(grad *tensor.Dense) *tensor.Dense { return grad }

// Params returns nil, the table is fixed.
func (l *Sinusoidal) Params() []*layer.Param { return nil }

// Learned adds a trainable position embedding.
type Learned struct {
	E     int
	Table *layer.Param // [maxLen, E]

	batch, n int
}

// NewLearned builds a zero-initialized learned encoding.
func NewLearned(embed, maxLen int) *Learned {
	return &Learned{E: embed, Table: layer.NewParam("posenc.table", maxLen, embed)}
}

// Forward adds the embedding to x shaped [B, N, E].
func (l *Learned) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	b, n := x.Shape[0], x.Shape[1]
	l.batch, l.n = b, n
	out := tensor.New(x.Shape...)
	for bi := 0; bi < b; bi++ {
		for i := 0; i < n; i++ {
			src := x.Data[(bi*n+i)*l.E : (bi*n+i+1)*l.E]
			pe := l.Table.Value.Data[i*l.E : (i+1)*l.E]
			dst := out.Data[(bi*n+i)*l.E : (bi*n+i+1)*l.E]
			for j, v := range src {
				dst[j] = v + pe[j]
			}
		}
	}
	return out
}

// Backward accumulates the table gradient summed over the batch.
func (l *Learned) Backward(grad *tensor.Dense) *tensor.Dense {
	for bi := 0; bi < l.batch; bi++ {
		for i := 0; i < l.n; i++ {
			g := grad.Data[(bi*l.n+i)*l.E : (bi*l.n+i+1)*l.E]
			dst := l.Table.Grad.Data[i*l.E : (i+1)*l.E]
			for j, v := range g {
				dst[j] += v
			}
		}
	}
	return grad
}

// Params returns the embedding table.
func (l *Learned) Params() []*layer.Param { return []*layer.Param{l.Table} }
