package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix functions used for the calculations in the program.

// r = rows of matrix
// c = columns of matrix
// o = output
// m = matrix input number 1
// n = matrix input number 2

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func Scale(s float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func Multiply(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func Add(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

func AddBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != r || cb != 1 {
		panic("addBias: bias must be (r x 1)")
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, j)+bias.At(i, 0))
		}
	}
	return out
}

func LastCol(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.At(i, c-1))
	}
	return out
}

// RowSums returns per-row sums for a mat.Dense.
func RowSums(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += m.At(i, j)
		}
		out[i] = sum
	}
	return out
}

// PrintMatrix prints a Gonum matrix in a compact form.
func PrintMatrix(m mat.Matrix, name string) {
	r, c := m.Dims()
	fmt.Printf("Matrix %s (%dx%d):\n", name, r, c)
	fa := mat.Formatted(m, mat.Prefix("  "), mat.Squeeze())
	fmt.Printf("%v\n", fa)
}

// CausalMask returns (T x T) with 0 on and below diagonal, -Inf above.
func CausalMask(T int) *mat.Dense {
	out := mat.NewDense(T, T, nil)
	negInf := -1e30
	for i := 0; i < T; i++ {
		for j := 0; j < T; j++ {
			if j > i {
				out.Set(i, j, negInf)
			} else {
				out.Set(i, j, 0.0)
			}
		}
	}
	return out
}

// ---------- Softmax variants ----------

// RowSoftmaxMaskedInPlace writes softmax(m+mask) into dst (r x c) in place.
func RowSoftmaxMaskedInPlace(dst, m, mask *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	if dr, dc := dst.Dims(); dr != r || dc != c {
		panic("RowSoftmaxMaskedInPlace: dst shape mismatch")
	}
	if mr, mc := mask.Dims(); mr != r || mc != c {
		panic("RowSoftmaxMaskedInPlace: mask shape mismatch")
	}
	for i := 0; i < r; i++ {
		mx := m.At(i, 0) + mask.At(i, 0)
		for j := 1; j < c; j++ {
			v := m.At(i, j) + mask.At(i, j)
			if v > mx {
				mx = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			e := math.Exp(m.At(i, j) + mask.At(i, j) - mx)
			dst.Set(i, j, e)
			sum += e
		}
		inv := 1.0 / sum
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)*inv)
		}
	}
	return dst
}

// RowSoftmax applies softmax independently to each row across columns.
// Used by attention (row sums should be 1).
func RowSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		// collect row
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		// numerical stability
		mx := row[0]
		for _, v := range row {
			if v > mx {
				mx = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			row[j] = math.Exp(row[j] - mx)
			sum += row[j]
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, row[j]/sum)
		}
	}
	return out
}

// ColVectorSoftmax applies softmax across the single column of a (r x 1) vector.
func ColVectorSoftmax(v *mat.Dense) *mat.Dense {
	r, c := v.Dims()
	if c != 1 {
		panic("ColVectorSoftmax expects a (r x 1) column vector")
	}
	out := mat.NewDense(r, 1, nil)
	// stability: subtract max
	mx := v.At(0, 0)
	for i := 1; i < r; i++ {
		if v.At(i, 0) > mx {
			mx = v.At(i, 0)
		}
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		e := math.Exp(v.At(i, 0) - mx)
		out.Set(i, 0, e)
		sum += e
	}
	for i := 0; i < r; i++ {
		out.Set(i, 0, out.At(i, 0)/sum)
	}
	return out
}

// -------- GELU activation (GPT-style) --------
// gelu(x) = 0.5 * x * (1 + tanh( sqrt(2/pi) * (x + 0.044715*x^3) ))
// Shape-compatible with mat.Dense.Apply (i,j,v) -> value.

func GeluApply(i, j int, x float64) float64 {
	const k = 0.7978845608028654 // sqrt(2/pi)
	t := k * (x + 0.044715*x*x*x)
	return 0.5 * x * (1.0 + math.Tanh(t))
}
