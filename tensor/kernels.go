package tensor

// Dot returns the dot product of equally sized slices.
func Dot(a, b []float64) float64 {
	var s0, s1, s2, s3 float64
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for i := n; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

// MatMul computes a*b into a new tensor. Both operands are 2D.
func MatMul(a, b *Dense) *Dense {
	ar, ac := a.Shape[0], a.Shape[1]
	br, bc := b.Shape[0], b.Shape[1]
	if ac != br {
		panic("tensor: MatMul dimension mismatch")
	}
	out := New(ar, bc)
	out.Matrix(ar, bc).Mul(a.Matrix(ar, ac), b.Matrix(br, bc))
	return out
}

// MatMulInto computes a*b into dst, which must be ar x bc.
func MatMulInto(dst, a, b *Dense) {
	ar, ac := a.Shape[0], a.Shape[1]
	br, bc := b.Shape[0], b.Shape[1]
	if ac != br {
		panic("tensor: MatMulInto dimension mismatch")
	}
	dst.Matrix(ar, bc).Mul(a.Matrix(ar, ac), b.Matrix(br, bc))
}

// T returns the transpose of a 2D tensor as a new tensor.
func T(a *Dense) *Dense {
	r, c := a.Shape[0], a.Shape[1]
	out := New(c, r)
	out.Matrix(c, r).Copy(a.Matrix(r, c).T())
	return out
}
