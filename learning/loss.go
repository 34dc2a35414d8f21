package learning

import (
	"math"

	"github.com/pkg/errors"

	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Loss maps a batch of logits [B, classes] and integer labels to a scalar
// loss and the gradient with respect to the logits.
type Loss interface {
	Compute(logits *tensor.Dense, labels []int) (float64, *tensor.Dense)
}

// NewLoss resolves a loss by the name the -tl flag carries.
func NewLoss(name string) (Loss, error) {
	switch name {
	case "CrossEntropyLoss":
		return CrossEntropy{}, nil
	}
	return nil, errors.Errorf("learning: unknown loss %q", name)
}

// CrossEntropy is softmax cross-entropy averaged over the batch.
type CrossEntropy struct{}

// Compute returns the mean loss and dL/dlogits.
func (CrossEntropy) Compute(logits *tensor.Dense, labels []int) (float64, *tensor.Dense) {
	b, c := logits.Shape[0], logits.Shape[1]
	grad := tensor.New(b, c)
	var total float64
	for i := 0; i < b; i++ {
		row := logits.Data[i*c : (i+1)*c]
		maxv := math.Inf(-1)
		for _, v := range row {
			if v > maxv {
				maxv = v
			}
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(v - maxv)
		}
		logZ := maxv + math.Log(sum)
		total += logZ - row[labels[i]]

		g := grad.Data[i*c : (i+1)*c]
		for j, v := range row {
			p := math.Exp(v - logZ)
			g[j] = p / float64(b)
		}
		g[labels[i]] -= 1 / float64(b)
	}
	return total / float64(b), grad
}
