package embedding

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/utils"
)

// Sinusoidal builds the fixed positional-encoding table from the original
// transformer paper, shaped (dModel x maxLen), one column per position:
//
//	PE[2i,   pos] = sin(pos / 10000^(2i/dModel))
//	PE[2i+1, pos] = cos(pos / 10000^(2i/dModel))
//
// The table is deterministic and never updated.
func Sinusoidal(dModel, maxLen int) *mat.Dense {
	out := mat.NewDense(dModel, maxLen, nil)
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dModel; i += 2 {
			denom := math.Pow(10000, float64(i)/float64(dModel))
			out.Set(i, pos, math.Sin(float64(pos)/denom))
			if i+1 < dModel {
				out.Set(i+1, pos, math.Cos(float64(pos)/denom))
			}
		}
	}
	return out
}

// Learned builds a randomly initialized positional table (dModel x maxLen),
// the trainable alternative to the sinusoidal one.
func Learned(dModel, maxLen int) *mat.Dense {
	return mat.NewDense(dModel, maxLen, utils.RandomArray(dModel*maxLen, float64(dModel)))
}

// AddPositional adds the first T columns of a positional table to an
// embedded sequence X (dModel x T).
func AddPositional(X, pos *mat.Dense) (*mat.Dense, error) {
	d, T := X.Dims()
	pd, maxLen := pos.Dims()
	if pd != d {
		return nil, fmt.Errorf("positional: table width %d does not match dModel %d", pd, d)
	}
	if T > maxLen {
		return nil, fmt.Errorf("positional: sequence length %d exceeds table length %d", T, maxLen)
	}
	out := mat.NewDense(d, T, nil)
	for j := 0; j < T; j++ {
		for i := 0; i < d; i++ {
			out.Set(i, j, X.At(i, j)+pos.At(i, j))
		}
	}
	return out, nil
}
