// Package learning holds the training hyperparameters and the pieces the
// trainer assembles from them: loss functions, optimizers and learning-rate
// schedules.
package learning

// HyperParameters configures one training run.
type HyperParameters struct {
	Epochs    int     // number of passes over the training set
	BatchSize int     // minibatch size
	LR        float64 // initial learning rate

	Loss      string // loss name, e.g. "CrossEntropyLoss"
	Optimizer string // optimizer name: SGD, Momentum, Adam, AdamW
	Schedule  string // LR schedule name: Constant, Step, Exponential, Cosine

	Seed    int64 // weight init, shuffling and dropout
	Workers int   // parallel workers, 0 picks the machine default

	Augment bool // class-conditional segment recombination per batch

	UseFullTrainSet bool // train on train+validation, no validation metric
}

// Defaults returns the hyperparameters the recorded runs started from.
func Defaults() HyperParameters {
	return HyperParameters{
		Epochs:    100,
		BatchSize: 64,
		LR:        2e-3,
		Loss:      "CrossEntropyLoss",
		Optimizer: "Adam",
		Schedule:  "Constant",
		Seed:      1,
	}
}
