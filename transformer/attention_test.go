package transformer

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/utils"
)

func TestScaledDotProductUniformWeights(t *testing.T) {
	// zero queries make every score equal, so weights are uniform and the
	// output is the mean of the value columns
	Q := mat.NewDense(1, 2, []float64{0, 0})
	K := mat.NewDense(1, 2, []float64{0.3, -0.7})
	V := mat.NewDense(1, 2, []float64{1, 3})

	out, A, err := ScaledDotProduct(Q, K, V, nil)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 2; j++ {
		if math.Abs(out.At(0, j)-2.0) > 1e-12 {
			t.Fatalf("out[0,%d] = %g, want 2.0", j, out.At(0, j))
		}
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(A.At(i, j)-0.5) > 1e-12 {
				t.Fatalf("A[%d,%d] = %g, want 0.5", i, j, A.At(i, j))
			}
		}
	}
}

func TestScaledDotProductHandComputed(t *testing.T) {
	// dk = 1 so the scale is 1 and the scores are plain products
	Q := mat.NewDense(1, 2, []float64{1, 2})
	K := mat.NewDense(1, 2, []float64{0.5, -1})
	V := mat.NewDense(1, 2, []float64{2, 4})

	out, A, err := ScaledDotProduct(Q, K, V, nil)
	if err != nil {
		t.Fatal(err)
	}
	// row 0: softmax(0.5, -1), row 1: softmax(1, -2)
	want := []float64{2.364852, 2.094852}
	for j, w := range want {
		if math.Abs(out.At(0, j)-w) > 1e-4 {
			t.Fatalf("out[0,%d] = %g, want %g", j, out.At(0, j), w)
		}
	}
	for _, s := range utils.RowSums(A) {
		if math.Abs(s-1.0) > 1e-12 {
			t.Fatalf("attention row sum = %g, want 1", s)
		}
	}
}

func TestScaledDotProductCausalMask(t *testing.T) {
	rand.Seed(7)
	T := 4
	Q := mat.NewDense(2, T, utils.RandomArray(2*T, 2))
	K := mat.NewDense(2, T, utils.RandomArray(2*T, 2))
	V := mat.NewDense(3, T, utils.RandomArray(3*T, 3))

	_, A, err := ScaledDotProduct(Q, K, V, utils.CausalMask(T))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < T; i++ {
		for j := i + 1; j < T; j++ {
			if A.At(i, j) > 1e-12 {
				t.Fatalf("A[%d,%d] = %g, future position not masked", i, j, A.At(i, j))
			}
		}
	}
	for _, s := range utils.RowSums(A) {
		if math.Abs(s-1.0) > 1e-12 {
			t.Fatalf("masked row sum = %g, want 1", s)
		}
	}
}

func TestScaledDotProductShapeErrors(t *testing.T) {
	Q := mat.NewDense(2, 3, nil)
	Kbad := mat.NewDense(3, 3, nil)
	V := mat.NewDense(2, 3, nil)
	if _, _, err := ScaledDotProduct(Q, Kbad, V, nil); err == nil {
		t.Fatal("expected depth mismatch error")
	}

	K := mat.NewDense(2, 3, nil)
	Vbad := mat.NewDense(2, 4, nil)
	if _, _, err := ScaledDotProduct(Q, K, Vbad, nil); err == nil {
		t.Fatal("expected timestep mismatch error")
	}

	badMask := mat.NewDense(2, 2, nil)
	if _, _, err := ScaledDotProduct(Q, K, V, badMask); err == nil {
		t.Fatal("expected mask shape error")
	}
}

func TestAttentionOutputShape(t *testing.T) {
	rand.Seed(42)
	attn := NewAttention(8, 2)
	X := mat.NewDense(8, 5, utils.RandomArray(8*5, 8))
	Y := attn.Forward(X)
	r, c := Y.Dims()
	if r != 8 || c != 5 {
		t.Fatalf("got (%d x %d), want (8 x 5)", r, c)
	}
}

func TestAttentionCausality(t *testing.T) {
	rand.Seed(42)
	attn := NewAttention(8, 2)
	X := mat.NewDense(8, 5, utils.RandomArray(8*5, 8))
	Y1 := attn.Forward(X)

	// editing the last token must not change any earlier output column
	X2 := mat.DenseCopyOf(X)
	for i := 0; i < 8; i++ {
		X2.Set(i, 4, X2.At(i, 4)+3.0)
	}
	Y2 := attn.Forward(X2)
	for i := 0; i < 8; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(Y1.At(i, j)-Y2.At(i, j)) > 1e-12 {
				t.Fatalf("output[%d,%d] changed by a future token", i, j)
			}
		}
	}
}

func TestAttentionSingleHeadMatchesScaledDotProduct(t *testing.T) {
	rand.Seed(123)
	d, T := 4, 3
	attn := NewAttention(d, 1)
	X := mat.NewDense(d, T, utils.RandomArray(d*T, float64(d)))

	got := attn.Forward(X)

	Q := utils.ToDense(utils.Dot(attn.Wquery[0], X))
	K := utils.ToDense(utils.Dot(attn.Wkey[0], X))
	V := utils.ToDense(utils.Dot(attn.Wvalue[0], X))
	o, _, err := ScaledDotProduct(Q, K, V, utils.CausalMask(T))
	if err != nil {
		t.Fatal(err)
	}
	want := utils.ToDense(utils.Dot(attn.Woutput, o))

	if !mat.EqualApprox(got, want, 1e-12) {
		t.Fatal("single-head forward disagrees with standalone scaled dot-product")
	}
}

func TestAttentionKVMatchesFullForward(t *testing.T) {
	rand.Seed(99)
	d, T := 8, 5
	attn := NewAttention(d, 2)
	X := mat.NewDense(d, T, utils.RandomArray(d*T, float64(d)))

	full := attn.Forward(X)

	kv := AttnKV{}
	for tStep := 0; tStep < T; tStep++ {
		xCol := mat.NewDense(d, 1, nil)
		for i := 0; i < d; i++ {
			xCol.Set(i, 0, X.At(i, tStep))
		}
		y := attn.ForwardLastWithKV(xCol, &kv)
		for i := 0; i < d; i++ {
			if math.Abs(y.At(i, 0)-full.At(i, tStep)) > 1e-9 {
				t.Fatalf("kv output[%d] at step %d = %g, full forward has %g",
					i, tStep, y.At(i, 0), full.At(i, tStep))
			}
		}
	}
	if kv.T != T {
		t.Fatalf("kv.T = %d, want %d", kv.T, T)
	}
}
