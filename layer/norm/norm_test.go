package norm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/IndrashisDas/dl-lab-project/tensor"
)

func checkLoss(out *tensor.Dense) float64 {
	var s float64
	for i, v := range out.Data {
		s += v * math.Sin(float64(i)*0.3+2)
	}
	return s
}

func lossGrad(out *tensor.Dense) *tensor.Dense {
	g := tensor.New(out.Shape...)
	for i := range g.Data {
		g.Data[i] = math.Sin(float64(i)*0.3 + 2)
	}
	return g
}

func numGrad(f func() float64, x []float64, i int) float64 {
	const h = 1e-6
	old := x[i]
	x[i] = old + h
	fp := f()
	x[i] = old - h
	fm := f()
	x[i] = old
	return (fp - fm) / (2 * h)
}

func close(a, b float64) bool {
	return math.Abs(a-b) <= 1e-4*math.Max(1, math.Abs(a)+math.Abs(b))
}

func TestBatchNormTrainStats(t *testing.T) {
	l := NewBatchNorm2d(2)
	rng := rand.New(rand.NewSource(1))
	x := tensor.New(3, 2, 2, 5)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()*3 + 2
	}
	y := l.Forward(x, true)

	// Each channel of the output is standardized over batch and space.
	hw := 10
	for c := 0; c < 2; c++ {
		var mean float64
		for b := 0; b < 3; b++ {
			for _, v := range y.Data[(b*2+c)*hw : (b*2+c+1)*hw] {
				mean += v
			}
		}
		mean /= 30
		if math.Abs(mean) > 1e-9 {
			t.Errorf("channel %d mean = %v", c, mean)
		}
	}
	if l.RunningMean.Data[0] == 0 {
		t.Error("running mean not updated")
	}
}

func TestBatchNormGradcheck(t *testing.T) {
	l := NewBatchNorm2d(2)
	rng := rand.New(rand.NewSource(2))
	x := tensor.New(2, 2, 3, 4)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()
	}

	f := func() float64 { return checkLoss(l.Forward(x, true)) }
	out := l.Forward(x, true)
	dx := l.Backward(lossGrad(out))

	for i := range x.Data {
		want := numGrad(f, x.Data, i)
		if !close(dx.Data[i], want) {
			t.Fatalf("dx[%d] = %v, want %v", i, dx.Data[i], want)
		}
	}
	for _, p := range l.Params() {
		for i := range p.Value.Data {
			want := numGrad(f, p.Value.Data, i)
			if !close(p.Grad.Data[i], want) {
				t.Fatalf("%s grad[%d] = %v, want %v", p.Name, i, p.Grad.Data[i], want)
			}
		}
	}
}

func TestBatchNormEvalUsesRunningStats(t *testing.T) {
	l := NewBatchNorm2d(1)
	l.RunningMean.Data[0] = 2
	l.RunningVar.Data[0] = 4
	x := tensor.FromSlice([]float64{4}, 1, 1, 1, 1)
	y := l.Forward(x, false)
	want := (4.0 - 2.0) / math.Sqrt(4+eps)
	if !close(y.Data[0], want) {
		t.Errorf("eval output = %v, want %v", y.Data[0], want)
	}
}

func TestLayerNormGradcheck(t *testing.T) {
	l := NewLayerNorm(6)
	rng := rand.New(rand.NewSource(3))
	x := tensor.New(4, 6)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64() * 2
	}

	f := func() float64 { return checkLoss(l.Forward(x, true)) }
	out := l.Forward(x, true)
	dx := l.Backward(lossGrad(out))

	for i := range x.Data {
		want := numGrad(f, x.Data, i)
		if !close(dx.Data[i], want) {
			t.Fatalf("dx[%d] = %v, want %v", i, dx.Data[i], want)
		}
	}
	for _, p := range l.Params() {
		for i := range p.Value.Data {
			want := numGrad(f, p.Value.Data, i)
			if !close(p.Grad.Data[i], want) {
				t.Fatalf("%s grad[%d] = %v, want %v", p.Name, i, p.Grad.Data[i], want)
			}
		}
	}
}

func TestLayerNormRows(t *testing.T) {
	l := NewLayerNorm(4)
	x := tensor.FromSlice([]float64{1, 2, 3, 4, 10, 10, 10, 10}, 2, 4)
	y := l.Forward(x, false)
	// A constant row normalizes to zero.
	for j := 4; j < 8; j++ {
		if math.Abs(y.Data[j]) > 1e-2 {
			t.Errorf("constant row -> %v", y.Data[4:8])
			break
		}
	}
}
