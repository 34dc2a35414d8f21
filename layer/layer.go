// Package layer defines the interface implemented by the trainable network
// layers and the parameter handle the optimizers update.
package layer

import (
	"math"
	"math/rand"

	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Param is one trainable tensor together with its accumulated gradient.
type Param struct {
	Name  string
	Value *tensor.Dense
	Grad  *tensor.Dense
}

// NewParam allocates a parameter and its gradient with the given shape.
func NewParam(name string, shape ...int) *Param {
	return &Param{Name: name, Value: tensor.New(shape...), Grad: tensor.New(shape...)}
}

// Layer is a differentiable network stage. Forward caches whatever Backward
// needs, so a layer instance is not safe for concurrent use.
type Layer interface {

	// Forward computes the layer output. train selects training behavior
	// for layers that act differently during evaluation.
	Forward(x *tensor.Dense, train bool) *tensor.Dense

	// Backward consumes the gradient of the loss with respect to the
	// output, accumulates parameter gradients and returns the gradient
	// with respect to the input of the preceding Forward call.
	Backward(grad *tensor.Dense) *tensor.Dense

	// Params lists the trainable parameters, empty for stateless layers.
	Params() []*Param
}

// KaimingUniform fills t with U(-b, b), b = 1/sqrt(fanIn), the default
// initialization of affine and convolution weights.
func KaimingUniform(rng *rand.Rand, t *tensor.Dense, fanIn int) {
	b := 1 / math.Sqrt(float64(fanIn))
	for i := range t.Data {
		t.Data[i] = (rng.Float64()*2 - 1) * b
	}
}
