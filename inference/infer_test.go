package inference

import (
	"math/rand"
	"testing"

	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/IndrashisDas/dl-lab-project/net/transformer"
)

func tinyModel(t *testing.T) *transformer.Model {
	t.Helper()
	m, err := transformer.New(rand.New(rand.NewSource(7)), transformer.Config{
		NumLayers:          1,
		NumChannels:        3,
		NumHeads:           2,
		WindowSize:         49,
		InputEmbeddingSize: 4,
		HiddenSize:         8,
		Dropout:            0,
		NumClasses:         2,
		PositionalEncoding: transformer.PosEncNone,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func tinyWindows(n int) *datasets.Windows {
	rng := rand.New(rand.NewSource(11))
	w := &datasets.Windows{SFreq: 250, NumClasses: 2}
	for i := 0; i < n; i++ {
		data := make([][]float64, 3)
		for c := range data {
			data[c] = make([]float64, 49)
			for s := range data[c] {
				data[c][s] = rng.NormFloat64()
			}
		}
		w.Wins = append(w.Wins, datasets.Window{Data: data, Label: i % 2})
	}
	return w
}

func TestEvaluate(t *testing.T) {
	m := tinyModel(t)
	w := tinyWindows(10)
	res := Evaluate(m, w, 4)
	if len(res.Predictions) != 10 || len(res.Scores) != 10 {
		t.Fatalf("got %d predictions, %d scores", len(res.Predictions), len(res.Scores))
	}
	if res.Accuracy < 0 || res.Accuracy > 1 {
		t.Fatalf("accuracy out of range: %v", res.Accuracy)
	}
	total := 0
	for _, row := range res.Confusion {
		for _, v := range row {
			total += v
		}
	}
	if total != 10 {
		t.Fatalf("confusion counts %d windows, want 10", total)
	}
	for i, p := range res.Predictions {
		if p != Argmax(res.Scores[i]) {
			t.Fatalf("prediction %d disagrees with its scores", i)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	m := tinyModel(t)
	w := tinyWindows(8)
	a := Evaluate(m, w, 3)
	b := Evaluate(m, w, 8)
	for i := range a.Predictions {
		if a.Predictions[i] != b.Predictions[i] {
			t.Fatalf("batch size changed prediction %d", i)
		}
	}
}

func TestBatchLayout(t *testing.T) {
	w := tinyWindows(4)
	x, labels := Batch(w, []int{2, 0})
	if x.Shape[0] != 2 || x.Shape[1] != 3 || x.Shape[2] != 49 {
		t.Fatalf("bad shape %v", x.Shape)
	}
	if labels[0] != 0 || labels[1] != 0 {
		t.Fatalf("bad labels %v", labels)
	}
	if x.Data[0] != w.Wins[2].Data[0][0] {
		t.Fatal("first sample not taken from window 2")
	}
	if x.Data[3*49] != w.Wins[0].Data[0][0] {
		t.Fatal("second batch row not taken from window 0")
	}
}

func TestArgmax(t *testing.T) {
	if got := Argmax([]float64{0.1, 2.5, -1, 2.5}); got != 1 {
		t.Fatalf("Argmax = %d, want 1", got)
	}
}
