package learning

import (
	"math"

	"github.com/pkg/errors"
)

// Schedule maps a zero-based epoch to the learning rate for that epoch.
type Schedule interface {
	LR(epoch int) float64
}

// NewSchedule resolves a schedule by the name the -lrs flag carries.
// totalEpochs bounds the cosine annealing period.
func NewSchedule(name string, base float64, totalEpochs int) (Schedule, error) {
	switch name {
	case "Constant":
		return Constant{Base: base}, nil
	case "Step":
		return Step{Base: base, Gamma: 0.1, Every: 30}, nil
	case "Exponential":
		return Exponential{Base: base, Gamma: 0.99}, nil
	case "Cosine":
		return Cosine{Base: base, Period: totalEpochs}, nil
	}
	return nil, errors.Errorf("learning: unknown LR schedule %q", name)
}

// Constant keeps the base rate.
type Constant struct{ Base float64 }

func (s Constant) LR(epoch int) float64 { return s.Base }

// Step multiplies by Gamma every Every epochs.
type Step struct {
	Base  float64
	Gamma float64
	Every int
}

func (s Step) LR(epoch int) float64 {
	return s.Base * math.Pow(s.Gamma, float64(epoch/s.Every))
}

// Exponential decays by Gamma each epoch.
type Exponential struct {
	Base  float64
	Gamma float64
}

func (s Exponential) LR(epoch int) float64 {
	return s.Base * math.Pow(s.Gamma, float64(epoch))
}

// Cosine anneals from Base to zero over Period epochs.
type Cosine struct {
	Base   float64
	Period int
}

func (s Cosine) LR(epoch int) float64 {
	if s.Period <= 1 {
		return s.Base
	}
	return s.Base * 0.5 * (1 + math.Cos(math.Pi*float64(epoch)/float64(s.Period-1)))
}
