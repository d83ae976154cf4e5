package embedding

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/params"
)

func TestLookupReturnsTableColumn(t *testing.T) {
	rand.Seed(11)
	tab := NewTable(4, 10)

	col, err := tab.Lookup(7)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if col.At(i, 0) != tab.W.At(i, 7) {
			t.Fatalf("lookup row %d = %g, table has %g", i, col.At(i, 0), tab.W.At(i, 7))
		}
	}
}

func TestLookupSeq(t *testing.T) {
	rand.Seed(12)
	tab := NewTable(3, 5)
	ids := []int{4, 0, 4}

	X, err := tab.LookupSeq(ids)
	if err != nil {
		t.Fatal(err)
	}
	r, c := X.Dims()
	if r != 3 || c != 3 {
		t.Fatalf("got (%d x %d), want (3 x 3)", r, c)
	}
	// repeated id must produce identical columns
	for i := 0; i < 3; i++ {
		if X.At(i, 0) != X.At(i, 2) {
			t.Fatal("same id produced different embeddings")
		}
		if X.At(i, 1) != tab.W.At(i, 0) {
			t.Fatal("column 1 is not the embedding of id 0")
		}
	}
}

func TestLookupErrors(t *testing.T) {
	tab := NewTable(3, 5)
	if _, err := tab.Lookup(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if _, err := tab.Lookup(-1); err == nil {
		t.Fatal("expected negative-id error")
	}
	if _, err := tab.LookupSeq(nil); err == nil {
		t.Fatal("expected empty-sequence error")
	}
	if _, err := tab.LookupSeq([]int{0, 9}); err == nil {
		t.Fatal("expected out-of-range error in sequence")
	}
}

func TestLookupIDUnknownFallback(t *testing.T) {
	v := params.Vocabulary{
		TokenToID: map[string]int{"<unk>": 3, "hello": 7},
		IDToToken: []string{"", "", "", "<unk>", "", "", "", "hello"},
	}
	if got := LookupID(v, "hello"); got != 7 {
		t.Fatalf("LookupID(hello) = %d, want 7", got)
	}
	if got := LookupID(v, "nonesuch"); got != 3 {
		t.Fatalf("LookupID(nonesuch) = %d, want <unk> id 3", got)
	}
}

func TestSinusoidalClosedForm(t *testing.T) {
	pe := Sinusoidal(4, 8)

	// position 0: sin rows are 0, cos rows are 1
	for i := 0; i < 4; i += 2 {
		if pe.At(i, 0) != 0 {
			t.Fatalf("PE[%d,0] = %g, want 0", i, pe.At(i, 0))
		}
		if pe.At(i+1, 0) != 1 {
			t.Fatalf("PE[%d,0] = %g, want 1", i+1, pe.At(i+1, 0))
		}
	}

	// position 1 spot values for dModel=4
	want := []float64{
		math.Sin(1),    // i=0: sin(1/10000^0)
		math.Cos(1),    // i=1
		math.Sin(0.01), // i=2: sin(1/10000^(2/4)) = sin(1/100)
		math.Cos(0.01), // i=3
	}
	for i, w := range want {
		if math.Abs(pe.At(i, 1)-w) > 1e-12 {
			t.Fatalf("PE[%d,1] = %g, want %g", i, pe.At(i, 1), w)
		}
	}
}

func TestAddPositional(t *testing.T) {
	pe := Sinusoidal(2, 4)
	X := mat.NewDense(2, 3, []float64{
		1, 1, 1,
		2, 2, 2,
	})
	Y, err := AddPositional(X, pe)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 2; i++ {
			want := X.At(i, j) + pe.At(i, j)
			if Y.At(i, j) != want {
				t.Fatalf("Y[%d,%d] = %g, want %g", i, j, Y.At(i, j), want)
			}
		}
	}
}

func TestAddPositionalGuards(t *testing.T) {
	pe := Sinusoidal(2, 4)

	tooLong := mat.NewDense(2, 5, nil)
	if _, err := AddPositional(tooLong, pe); err == nil {
		t.Fatal("expected sequence-too-long error")
	}
	wrongWidth := mat.NewDense(3, 2, nil)
	if _, err := AddPositional(wrongWidth, pe); err == nil {
		t.Fatal("expected width mismatch error")
	}
}

func TestLearnedShape(t *testing.T) {
	rand.Seed(13)
	pos := Learned(6, 10)
	r, c := pos.Dims()
	if r != 6 || c != 10 {
		t.Fatalf("got (%d x %d), want (6 x 10)", r, c)
	}
}
