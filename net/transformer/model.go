package transformer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/layer"
	"github.com/IndrashisDas/dl-lab-project/layer/act"
	"github.com/IndrashisDas/dl-lab-project/layer/conv2d"
	"github.com/IndrashisDas/dl-lab-project/layer/dropout"
	"github.com/IndrashisDas/dl-lab-project/layer/linear"
	"github.com/IndrashisDas/dl-lab-project/layer/norm"
	"github.com/IndrashisDas/dl-lab-project/layer/pool"
	"github.com/IndrashisDas/dl-lab-project/layer/posenc"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Model is the assembled network. It is not safe for concurrent use: the
// layers cache activations between Forward and Backward.
type Model struct {
	Cfg    Config
	Tokens int

	conv1 *conv2d.Layer
	bn1   *norm.BatchNorm2d
	silu1 *act.SiLU
	conv2 *conv2d.Layer
	bn2   *norm.BatchNorm2d
	silu2 *act.SiLU
	pool  *pool.AvgPool2d
	drop  *dropout.Layer
	conv3 *conv2d.Layer

	pe     layer.Layer // nil when disabled
	blocks []*block

	headNorm *norm.LayerNorm
	headLin  *linear.Layer

	batch int // of the last Forward
}

// New builds a model from the config with weights drawn from rng.
func New(rng *rand.Rand, c Config) (*Model, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	tokens, err := c.Tokens()
	if err != nil {
		return nil, err
	}
	m := &Model{
		Cfg:    c,
		Tokens: tokens,
		conv1:  conv2d.New(rng, 1, convChannels, 1, temporalKernel, 1, 1),
		bn1:    norm.NewBatchNorm2d(convChannels),
		silu1:  act.NewSiLU(),
		conv2:  conv2d.New(rng, convChannels, convChannels, c.NumChannels, 1, 1, 1),
		bn2:    norm.NewBatchNorm2d(convChannels),
		silu2:  act.NewSiLU(),
		pool:   pool.New(1, poolKernel, 1, poolStride),
		drop:   dropout.New(rng, c.Dropout),
		conv3:  conv2d.New(rng, convChannels, c.InputEmbeddingSize, 1, 1, 1, 1),

		headNorm: norm.NewLayerNorm(c.InputEmbeddingSize),
		headLin:  linear.New(rng, c.InputEmbeddingSize, c.NumClasses),
	}
	switch c.PositionalEncoding {
	case PosEncSinusoidal:
		m.pe = posenc.NewSinusoidal(c.InputEmbeddingSize, tokens)
	case PosEncLearned:
		m.pe = posenc.NewLearned(c.InputEmbeddingSize, tokens)
	}
	for i := 0; i < c.NumLayers; i++ {
		m.blocks = append(m.blocks, newBlock(rng, c))
	}
	return m, nil
}

// CheckInput verifies that [channels, window] data matches the geometry the
// model was built with. Forward reshapes by the config, so mismatched data
// must be rejected before it reaches the network.
func (m *Model) CheckInput(channels, window int) error {
	if channels != m.Cfg.NumChannels || window != m.Cfg.WindowSize {
		return errors.Errorf("transformer: input is %d channels x %d samples, model wants %d x %d",
			channels, window, m.Cfg.NumChannels, m.Cfg.WindowSize)
	}
	return nil
}

// Forward maps a batch of windows [B, channels, window] to logits
// [B, classes].
func (m *Model) Forward(x *tensor.Dense, train bool) *tensor.Dense {
	b := x.Shape[0]
	m.batch = b
	e := m.Cfg.InputEmbeddingSize

	h := x.Reshape(b, 1, m.Cfg.NumChannels, m.Cfg.WindowSize)
	h = m.silu1.Forward(m.bn1.Forward(m.conv1.Forward(h, train), train), train)
	h = m.silu2.Forward(m.bn2.Forward(m.conv2.Forward(h, train), train), train)
	h = m.drop.Forward(m.pool.Forward(h, train), train)
	h = m.conv3.Forward(h, train) // [B, E, 1, tokens]

	// Flatten and transpose to token-major [B, tokens, E].
	tok := tensor.New(b, m.Tokens, e)
	for bi := 0; bi < b; bi++ {
		for ei := 0; ei < e; ei++ {
			src := h.Data[(bi*e+ei)*m.Tokens : (bi*e+ei+1)*m.Tokens]
			for ti, v := range src {
				tok.Data[(bi*m.Tokens+ti)*e+ei] = v
			}
		}
	}

	if m.pe != nil {
		tok = m.pe.Forward(tok, train)
	}
	for _, blk := range m.blocks {
		tok = blk.forward(tok, train)
	}

	// Mean over tokens.
	pooled := tensor.New(b, e)
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < m.Tokens; ti++ {
			row := tok.Data[(bi*m.Tokens+ti)*e : (bi*m.Tokens+ti+1)*e]
			dst := pooled.Data[bi*e : (bi+1)*e]
			for j, v := range row {
				dst[j] += v
			}
		}
	}
	inv := 1 / float64(m.Tokens)
	for i := range pooled.Data {
		pooled.Data[i] *= inv
	}

	return m.headLin.Forward(m.headNorm.Forward(pooled, train), train)
}

// Backward propagates dL/dlogits through the whole network, accumulating
// parameter gradients. The input gradient is discarded.
func (m *Model) Backward(grad *tensor.Dense) {
	b := m.batch
	e := m.Cfg.InputEmbeddingSize

	g := m.headNorm.Backward(m.headLin.Backward(grad))

	// Mean pooling spreads the gradient uniformly over the tokens.
	gt := tensor.New(b, m.Tokens, e)
	inv := 1 / float64(m.Tokens)
	for bi := 0; bi < b; bi++ {
		src := g.Data[bi*e : (bi+1)*e]
		for ti := 0; ti < m.Tokens; ti++ {
			dst := gt.Data[(bi*m.Tokens+ti)*e : (bi*m.Tokens+ti+1)*e]
			for j, v := range src {
				dst[j] = v * inv
			}
		}
	}

	for i := len(m.blocks) - 1; i >= 0; i-- {
		gt = m.blocks[i].backward(gt)
	}
	if m.pe != nil {
		gt = m.pe.Backward(gt)
	}

	// Transpose back to [B, E, 1, tokens] for the convolution stack.
	gc := tensor.New(b, e, 1, m.Tokens)
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < m.Tokens; ti++ {
			row := gt.Data[(bi*m.Tokens+ti)*e : (bi*m.Tokens+ti+1)*e]
			for ei, v := range row {
				gc.Data[(bi*e+ei)*m.Tokens+ti] = v
			}
		}
	}

	gh := m.conv3.Backward(gc)
	gh = m.pool.Backward(m.drop.Backward(gh))
	gh = m.conv2.Backward(m.bn2.Backward(m.silu2.Backward(gh)))
	_ = m.conv1.Backward(m.bn1.Backward(m.silu1.Backward(gh)))
}

// Params lists every trainable parameter in a deterministic order.
func (m *Model) Params() []*layer.Param {
	var out []*layer.Param
	for _, l := range []layer.Layer{m.conv1, m.bn1, m.conv2, m.bn2, m.conv3} {
		out = append(out, l.Params()...)
	}
	if m.pe != nil {
		out = append(out, m.pe.Params()...)
	}
	for _, blk := range m.blocks {
		out = append(out, blk.params()...)
	}
	out = append(out, m.headNorm.Params()...)
	out = append(out, m.headLin.Params()...)
	return out
}

// state lists the non-trainable tensors (batch norm running statistics) in
// a deterministic order.
func (m *Model) state() []*tensor.Dense {
	return []*tensor.Dense{m.bn1.RunningMean, m.bn1.RunningVar, m.bn2.RunningMean, m.bn2.RunningVar}
}

// ZeroGrad clears all accumulated gradients.
func (m *Model) ZeroGrad() {
	for _, p := range m.Params() {
		p.Grad.Zero()
	}
}
