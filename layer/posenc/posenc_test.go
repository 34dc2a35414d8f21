package posenc

import (
	"math"
	"testing"

	"github.com/IndrashisDas/dl-lab-project/tensor"
)

func TestSinusoidalTable(t *testing.T) {
	l := NewSinusoidal(4, 10)
	// Position 0: sin(0)=0, cos(0)=1 alternating.
	if l.pe.Data[0] != 0 || l.pe.Data[1] != 1 || l.pe.Data[2] != 0 || l.pe.Data[3] != 1 {
		t.Errorf("pe[0] = %v", l.pe.Data[:4])
	}
	// Position 1, dim 0: sin(1).
	if math.Abs(l.pe.Data[4]-math.Sin(1)) > 1e-12 {
		t.Errorf("pe[1][0] = %v", l.pe.Data[4])
	}
}

func TestSinusoidalForwardAddsPerPosition(t *testing.T) {
	l := NewSinusoidal(4, 10)
	x := tensor.New(2, 3, 4)
	y := l.Forward(x, true)
	// Batch elements see the same table.
	for i := 0; i < 12; i++ {
		if y.Data[i] != y.Data[12+i] {
			t.Fatalf("batch mismatch at %d", i)
		}
	}
	g := tensor.New(2, 3, 4)
	g.Data[5] = 2.5
	if dx := l.Backward(g); dx.Data[5] != 2.5 {
		t.Error("sinusoidal backward must pass gradient through")
	}
}

func TestLearnedAccumulatesTableGrad(t *testing.T) {
	l := NewLearned(4, 8)
	x := tensor.New(3, 2, 4)
	l.Forward(x, true)
	g := tensor.New(3, 2, 4)
	for i := range g.Data {
		g.Data[i] = 1
	}
	l.Backward(g)
	// Each used position accumulates one gradient per batch element.
	for i := 0; i < 2*4; i++ {
		if l.Table.Grad.Data[i] != 3 {
			t.Fatalf("table grad[%d] = %v", i, l.Table.Grad.Data[i])
		}
	}
	// Unused positions stay untouched.
	if l.Table.Grad.Data[2*4] != 0 {
		t.Error("unused position accumulated gradient")
	}
}
