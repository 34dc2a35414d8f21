// Package tensor provides the dense float64 containers shared by the
// network layers. Tensors are row-major; reshaping is a view, not a copy.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dense is a dense row-major tensor.
type Dense struct {
	Shape []int
	Data  []float64
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) *Dense {
	n := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("tensor: bad dimension %d", s))
		}
		n *= s
	}
	return &Dense{Shape: append([]int(nil), shape...), Data: make([]float64, n)}
}

// FromSlice wraps data in a tensor of the given shape. The slice is not copied.
func FromSlice(data []float64, shape ...int) *Dense {
	t := &Dense{Shape: append([]int(nil), shape...), Data: data}
	if t.Size() != len(data) {
		panic(fmt.Sprintf("tensor: shape %v does not hold %d elements", shape, len(data)))
	}
	return t
}

// Size reports the number of elements.
func (t *Dense) Size() int {
	n := 1
	for _, s := range t.Shape {
		n *= s
	}
	return n
}

// Clone copies the tensor and its data.
func (t *Dense) Clone() *Dense {
	c := &Dense{Shape: append([]int(nil), t.Shape...), Data: make([]float64, len(t.Data))}
	copy(c.Data, t.Data)
	return c
}

// Zero clears the data in place.
func (t *Dense) Zero() {
	for i := range t.Data {
		t.Data[i] = 0
	}
}

// Reshape returns a view with a new shape over the same data.
func (t *Dense) Reshape(shape ...int) *Dense {
	v := &Dense{Shape: append([]int(nil), shape...), Data: t.Data}
	if v.Size() != len(t.Data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", t.Shape, shape))
	}
	return v
}

// Matrix views the tensor as a rows x cols gonum matrix sharing the data.
func (t *Dense) Matrix(rows, cols int) *mat.Dense {
	if rows*cols != len(t.Data) {
		panic(fmt.Sprintf("tensor: %dx%d view over %d elements", rows, cols, len(t.Data)))
	}
	return mat.NewDense(rows, cols, t.Data)
}
