// Package transformer implements the EEG classification network: a
// convolutional front-end that tokenizes the raw window, a stack of
// self-attention encoder blocks and a linear classifier head.
package transformer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/layer/act"
	"github.com/IndrashisDas/dl-lab-project/layer/attention"
	"github.com/IndrashisDas/dl-lab-project/layer/dropout"
	"github.com/IndrashisDas/dl-lab-project/layer/linear"
	"github.com/IndrashisDas/dl-lab-project/layer/norm"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Positional encoding modes.
const (
	PosEncNone       = ""
	PosEncSinusoidal = "sinusoidal"
	PosEncLearned    = "learned"
)

// DefaultName is the registry entry the recorded runs trained.
const DefaultName = "EEGTransformerBasic"

// Front-end geometry, fixed by the architecture.
const (
	convChannels   = 40
	temporalKernel = 20
	poolKernel     = 30
	poolStride     = 15
)

// Config describes one network instance. It is embedded in saved models so
// a checkpoint rebuilds itself.
type Config struct {
	NumLayers          int     `json:"num_layers"`
	NumChannels        int     `json:"num_channels"`
	NumHeads           int     `json:"num_heads"`
	WindowSize         int     `json:"window_size"`
	InputEmbeddingSize int     `json:"input_embedding_size"`
	HiddenSize         int     `json:"hidden_size"`
	Dropout            float64 `json:"dropout"`
	NumClasses         int     `json:"num_classes"`
	PositionalEncoding string  `json:"positional_encoding"`
}

// DefaultConfig returns the geometry the recorded runs started from. The
// dataset-derived fields (NumChannels, WindowSize, NumClasses) stay zero
// until the caller fills them from the data.
func DefaultConfig() Config {
	return Config{
		NumLayers:          2,
		NumHeads:           8,
		InputEmbeddingSize: 40,
		HiddenSize:         64,
		Dropout:            0.5,
		PositionalEncoding: PosEncNone,
	}
}

// Tokens reports the encoder sequence length produced by the front-end.
func (c Config) Tokens() (int, error) {
	w := c.WindowSize - temporalKernel + 1
	w = (w-poolKernel)/poolStride + 1
	if w < 1 {
		return 0, errors.Errorf("transformer: window size %d too small for the front-end", c.WindowSize)
	}
	return w, nil
}

func (c Config) validate() error {
	if c.NumLayers < 1 || c.NumChannels < 1 || c.WindowSize < 1 || c.NumClasses < 2 {
		return errors.Errorf("transformer: bad config %+v", c)
	}
	if c.InputEmbeddingSize < 1 || c.InputEmbeddingSize%c.NumHeads != 0 {
		return errors.Errorf("transformer: embedding size %d not divisible by %d heads", c.InputEmbeddingSize, c.NumHeads)
	}
	switch c.PositionalEncoding {
	case PosEncNone, PosEncSinusoidal, PosEncLearned:
	default:
		return errors.Errorf("transformer: unknown positional encoding %q", c.PositionalEncoding)
	}
	_, err := c.Tokens()
	return err
}

// block is one encoder stage: self-attention with a double residual (the
// attention output is added twice, which the trained checkpoints depend
// on), a two-layer feed-forward, and a trailing SiLU.
type block struct {
	attn  *attention.Layer
	drop1 *dropout.Layer
	norm1 *norm.LayerNorm
	lin1  *linear.Layer
	lin2  *linear.Layer
	drop2 *dropout.Layer
	norm2 *norm.LayerNorm
	silu  *act.SiLU
}

func newBlock(rng *rand.Rand, c Config) *block {
	return &block{
		attn:  attention.MustNew(rng, c.InputEmbeddingSize, c.NumHeads),
		drop1: dropout.New(rng, c.Dropout),
		norm1: norm.NewLayerNorm(c.InputEmbeddingSize),
		lin1:  linear.New(rng, c.InputEmbeddingSize, c.HiddenSize),
		lin2:  linear.New(rng, c.HiddenSize, c.InputEmbeddingSize),
		drop2: dropout.New(rng, c.Dropout),
		norm2: norm.NewLayerNorm(c.InputEmbeddingSize),
		silu:  act.NewSiLU(),
	}
}

func (b *block) forward(x *tensor.Dense, train bool) *tensor.Dense {
	shape := x.Shape
	a := b.attn.Forward(x, train)
	d := b.drop1.Forward(a, train)
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = x.Data[i] + d.Data[i] + a.Data[i]
	}
	h := b.norm1.Forward(t, train)
	ff := b.lin2.Forward(b.lin1.Forward(h, train), train)
	fd := b.drop2.Forward(ff, train)
	s := tensor.New(shape...)
	for i := range s.Data {
		s.Data[i] = h.Data[i] + fd.Data[i]
	}
	return b.silu.Forward(b.norm2.Forward(s, train), train)
}

func (b *block) backward(grad *tensor.Dense) *tensor.Dense {
	g := b.norm2.Backward(b.silu.Backward(grad))
	gff := b.lin1.Backward(b.lin2.Backward(b.drop2.Backward(g)))
	gh := tensor.New(g.Shape...)
	for i := range gh.Data {
		gh.Data[i] = g.Data[i] + gff.Data[i]
	}
	gt := b.norm1.Backward(gh)
	gd := b.drop1.Backward(gt)
	ga := tensor.New(gt.Shape...)
	for i := range ga.Data {
		ga.Data[i] = gd.Data[i] + gt.Data[i]
	}
	gx := b.attn.Backward(ga)
	out := tensor.New(gx.Shape...)
	for i := range out.Data {
		out.Data[i] = gx.Data[i] + gt.Data[i]
	}
	return out
}

func (b *block) params() []*layer.Param {
	var out []*layer.Param
	for _, l := range []layer.Layer{b.attn, b.norm1, b.lin1, b.lin2, b.norm2} {
		out = append(out, l.Params()...)
	}
	return out
}
