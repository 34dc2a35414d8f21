// Package inference runs trained models over windowed EEG data in eval mode.
package inference

import (
	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/IndrashisDas/dl-lab-project/net/transformer"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Result holds per-window predictions and aggregate metrics.
type Result struct {
	Predictions []int
	Labels      []int
	Scores      [][]float64
	Accuracy    float64
	Confusion   [][]int
}

// Evaluate classifies every window of w in batches and tallies accuracy and
// the confusion matrix (rows = true class, columns = predicted class).
func Evaluate(m *transformer.Model, w *datasets.Windows, batchSize int) *Result {
	if batchSize <= 0 {
		batchSize = 1
	}
	n := w.Len()
	res := &Result{
		Predictions: make([]int, n),
		Labels:      make([]int, n),
		Scores:      make([][]float64, n),
		Confusion:   confusion(w.NumClasses),
	}
	correct := 0
	for start := 0; start < n; start += batchSize {
		stop := start + batchSize
		if stop > n {
			stop = n
		}
		x, labels := Batch(w, indexRange(start, stop))
		logits := m.Forward(x, false)
		classes := logits.Shape[1]
		for i, label := range labels {
			row := logits.Data[i*classes : (i+1)*classes]
			pred := Argmax(row)
			res.Predictions[start+i] = pred
			res.Labels[start+i] = label
			res.Scores[start+i] = append([]float64(nil), row...)
			if label >= 0 && label < len(res.Confusion) && pred < classes {
				res.Confusion[label][pred]++
			}
			if pred == label {
				correct++
			}
		}
	}
	if n > 0 {
		res.Accuracy = float64(correct) / float64(n)
	}
	return res
}

// Batch assembles the windows at idx into a [len(idx), channels, samples]
// tensor plus the matching class labels.
func Batch(w *datasets.Windows, idx []int) (*tensor.Dense, []int) {
	if len(idx) == 0 {
		return nil, nil
	}
	channels := len(w.Wins[idx[0]].Data)
	samples := w.WindowSize()
	x := tensor.New(len(idx), channels, samples)
	labels := make([]int, len(idx))
	for i, j := range idx {
		win := w.Wins[j]
		labels[i] = win.Label
		for c, ch := range win.Data {
			copy(x.Data[(i*channels+c)*samples:(i*channels+c+1)*samples], ch)
		}
	}
	return x, labels
}

// Argmax returns the index of the largest score.
func Argmax(row []float64) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

func confusion(classes int) [][]int {
	m := make([][]int, classes)
	for i := range m {
		m[i] = make([]int, classes)
	}
	return m
}

func indexRange(start, stop int) []int {
	idx := make([]int, stop-start)
	for i := range idx {
		idx[i] = start + i
	}
	return idx
}
