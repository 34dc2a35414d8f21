package trainer

import (
	"math/rand"

	"github.com/IndrashisDas/dl-lab-project/datasets"
)

// augSegments is the number of time segments recombined per synthetic trial.
const augSegments = 8

// Interaug synthesizes extra trials by class-conditional segment
// recombination: each synthetic trial of a class is stitched together from
// augSegments time slices, every slice taken at its own position from a
// random real trial of the same class. It returns batch/NumClasses synthetic
// windows per class. Any samples past the last full segment stay zero, which
// is what the recorded runs trained on.
func Interaug(rng *rand.Rand, w *datasets.Windows, batch int) []datasets.Window {
	if w.Len() == 0 || w.NumClasses == 0 || batch < w.NumClasses {
		return nil
	}
	byClass := make([][]int, w.NumClasses)
	for i, win := range w.Wins {
		if win.Label >= 0 && win.Label < w.NumClasses {
			byClass[win.Label] = append(byClass[win.Label], i)
		}
	}
	channels := len(w.Wins[0].Data)
	samples := w.WindowSize()
	segLen := samples / augSegments
	perClass := batch / w.NumClasses

	var out []datasets.Window
	for class, pool := range byClass {
		if len(pool) == 0 {
			continue
		}
		for n := 0; n < perClass; n++ {
			data := make([][]float64, channels)
			for c := range data {
				data[c] = make([]float64, samples)
			}
			for seg := 0; seg < augSegments; seg++ {
				src := w.Wins[pool[rng.Intn(len(pool))]]
				lo, hi := seg*segLen, (seg+1)*segLen
				for c := range data {
					copy(data[c][lo:hi], src.Data[c][lo:hi])
				}
			}
			out = append(out, datasets.Window{Data: data, Label: class})
		}
	}
	return out
}
