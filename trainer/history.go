package trainer

// EpochStats records one epoch of a training run.
type EpochStats struct {
	Epoch     int
	LR        float64
	TrainLoss float64
	TrainAcc  float64
	ValidAcc  float64 // -1 when no validation set was used
}

// History is the per-epoch record of a whole run.
type History []EpochStats

// Best returns the epoch with the highest validation accuracy, falling back
// to training accuracy when no validation set was used. The second result is
// false for an empty history.
func (h History) Best() (EpochStats, bool) {
	if len(h) == 0 {
		return EpochStats{}, false
	}
	best := h[0]
	for _, e := range h[1:] {
		if metric(e) > metric(best) {
			best = e
		}
	}
	return best, true
}

func metric(e EpochStats) float64 {
	if e.ValidAcc >= 0 {
		return e.ValidAcc
	}
	return e.TrainAcc
}
