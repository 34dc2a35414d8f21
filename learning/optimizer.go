package learning

import (
	"math"

	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/layer"
)

// Optimizer applies one update step to the parameters from their
// accumulated gradients, then clears the gradients.
type Optimizer interface {
	Step(params []*layer.Param, lr float64)
}

// NewOptimizer resolves an optimizer by the name the -o flag carries.
func NewOptimizer(name string) (Optimizer, error) {
	switch name {
	case "SGD":
		return &SGD{}, nil
	case "Momentum":
		return &SGD{Momentum: 0.9}, nil
	case "Adam":
		return NewAdam(0), nil
	case "AdamW":
		return NewAdam(1e-2), nil
	}
	return nil, errors.Errorf("learning: unknown optimizer %q", name)
}

// SGD is stochastic gradient descent, optionally with momentum.
type SGD struct {
	Momentum float64

	velocity map[*layer.Param][]float64
}

// Step updates every parameter in place.
func (o *SGD) Step(params []*layer.Param, lr float64) {
	for _, p := range params {
		if o.Momentum > 0 {
			if o.velocity == nil {
				o.velocity = make(map[*layer.Param][]float64)
			}
			v, ok := o.velocity[p]
			if !ok {
				v = make([]float64, len(p.Grad.Data))
				o.velocity[p] = v
			}
			for i, g := range p.Grad.Data {
				v[i] = o.Momentum*v[i] + g
				p.Value.Data[i] -= lr * v[i]
			}
		} else {
			for i, g := range p.Grad.Data {
				p.Value.Data[i] -= lr * g
			}
		}
		p.Grad.Zero()
	}
}

// Adam is the Adam optimizer; a non-zero WeightDecay makes it AdamW
// (decoupled decay applied directly to the weights).
type Adam struct {
	Beta1, Beta2 float64
	Eps          float64
	WeightDecay  float64

	t int
	m map[*layer.Param][]float64
	v map[*layer.Param][]float64
}

// NewAdam builds the optimizer with the standard 0.9/0.999 betas.
func NewAdam(weightDecay float64) *Adam {
	return &Adam{
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		m:           make(map[*layer.Param][]float64),
		v:           make(map[*layer.Param][]float64),
	}
}

// Step updates every parameter in place.
func (o *Adam) Step(params []*layer.Param, lr float64) {
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for _, p := range params {
		m, ok := o.m[p]
		if !ok {
			m = make([]float64, len(p.Grad.Data))
			o.m[p] = m
			o.v[p] = make([]float64, len(p.Grad.Data))
		}
		v := o.v[p]
		for i, g := range p.Grad.Data {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*g
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*g*g
			mhat := m[i] / c1
			vhat := v[i] / c2
			if o.WeightDecay > 0 {
				p.Value.Data[i] -= lr * o.WeightDecay * p.Value.Data[i]
			}
			p.Value.Data[i] -= lr * mhat / (math.Sqrt(vhat) + o.Eps)
		}
		p.Grad.Zero()
	}
}
