package trainer

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/IndrashisDas/dl-lab-project/learning"
	"github.com/IndrashisDas/dl-lab-project/net/transformer"
)

func tinyModel(t *testing.T) *transformer.Model {
	t.Helper()
	m, err := transformer.New(rand.New(rand.NewSource(3)), transformer.Config{
		NumLayers:          1,
		NumChannels:        2,
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

// separable builds windows where class 1 carries a strong oscillation that
// class 0 lacks, so a few epochs suffice to tell them apart.
func separable(n int) *datasets.Windows {
	rng := rand.New(rand.NewSource(5))
	w := &datasets.Windows{SFreq: 250, NumClasses: 2}
	for i := 0; i < n; i++ {
		label := i % 2
		data := make([][]float64, 2)
		for c := range data {
			data[c] = make([]float64, 49)
			for s := range data[c] {
				v := 0.1 * rng.NormFloat64()
				if label == 1 {
					v += 2 * math.Sin(float64(s)/2)
				}
				data[c][s] = v
			}
		}
		w.Wins = append(w.Wins, datasets.Window{Data: data, Label: label})
	}
	return w
}

func quietLog() log.Interface {
	return &log.Logger{Handler: discard.New(), Level: log.InfoLevel}
}

func TestLoopLearns(t *testing.T) {
	m := tinyModel(t)
	train := separable(16)
	hp := learning.Defaults()
	hp.Epochs = 8
	hp.BatchSize = 8
	hp.LR = 1e-3

	hist, err := Loop(context.Background(), m, train, nil, Config{HP: hp, Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != hp.Epochs {
		t.Fatalf("history has %d epochs, want %d", len(hist), hp.Epochs)
	}
	for _, e := range hist {
		if math.IsNaN(e.TrainLoss) || math.IsInf(e.TrainLoss, 0) {
			t.Fatalf("epoch %d: loss %v", e.Epoch, e.TrainLoss)
		}
		if e.ValidAcc != -1 {
			t.Fatalf("epoch %d: valid accuracy %v without a validation set", e.Epoch, e.ValidAcc)
		}
	}
	first := (hist[0].TrainLoss + hist[1].TrainLoss) / 2
	last := (hist[len(hist)-2].TrainLoss + hist[len(hist)-1].TrainLoss) / 2
	if last >= first {
		t.Fatalf("loss did not improve: first %v, last %v", first, last)
	}
}

func TestLoopCheckpoint(t *testing.T) {
	m := tinyModel(t)
	train := separable(8)
	valid := separable(8)
	hp := learning.Defaults()
	hp.Epochs = 2
	hp.BatchSize = 4
	hp.LR = 1e-3

	dst := filepath.Join(t.TempDir(), "best.json.zlib")
	hist, err := Loop(context.Background(), m, train, valid, Config{HP: hp, Log: quietLog(), DstModel: dst})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("no checkpoint written: %v", err)
	}
	for _, e := range hist {
		if e.ValidAcc < 0 || e.ValidAcc > 1 {
			t.Fatalf("epoch %d: valid accuracy %v", e.Epoch, e.ValidAcc)
		}
	}

	loaded, err := Resume(true, dst)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil {
		t.Fatal("Resume returned no model")
	}
	none, err := Resume(false, dst)
	if err != nil || none != nil {
		t.Fatalf("Resume(false) = %v, %v", none, err)
	}
}

func TestLoopCancel(t *testing.T) {
	m := tinyModel(t)
	train := separable(4)
	hp := learning.Defaults()
	hp.Epochs = 50
	hp.BatchSize = 4

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hist, err := Loop(ctx, m, train, nil, Config{HP: hp, Log: quietLog()})
	if err == nil {
		t.Fatal("expected a context error")
	}
	if len(hist) != 0 {
		t.Fatalf("got %d epochs after cancellation", len(hist))
	}
}

func TestInteraug(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	w := &datasets.Windows{SFreq: 250, NumClasses: 2}
	for i := 0; i < 8; i++ {
		label := i % 2
		data := [][]float64{make([]float64, 50)}
		for s := range data[0] {
			data[0][s] = float64(label + 1) // class 0 windows hold 1, class 1 hold 2
		}
		w.Wins = append(w.Wins, datasets.Window{Data: data, Label: label})
	}

	aug := Interaug(rng, w, 8)
	if len(aug) != 8 {
		t.Fatalf("got %d augmented windows, want 8", len(aug))
	}
	counts := map[int]int{}
	segLen := 50 / augSegments
	for _, win := range aug {
		counts[win.Label]++
		want := float64(win.Label + 1)
		for s := 0; s < segLen*augSegments; s++ {
			if win.Data[0][s] != want {
				t.Fatalf("class %d window has sample %v at %d", win.Label, win.Data[0][s], s)
			}
		}
		for s := segLen * augSegments; s < 50; s++ {
			if win.Data[0][s] != 0 {
				t.Fatalf("tail sample %d is %v, want 0", s, win.Data[0][s])
			}
		}
	}
	if counts[0] != 4 || counts[1] != 4 {
		t.Fatalf("class balance off: %v", counts)
	}
}
