package transformer

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/params"
	"github.com/Pogjunan/GPT-understand/utils"
)

// ScaledDotProduct computes softmax(Q^T K / sqrt(dk)) V for one head.
// Q is (dk x Tq), K is (dk x Tk), V is (dv x Tk), one column per timestep.
// mask may be nil or an additive (Tq x Tk) matrix (-inf above the diagonal
// for causal attention). Returns the attended output (dv x Tq) and the
// attention weight matrix (Tq x Tk), whose rows sum to 1.
func ScaledDotProduct(Q, K, V, mask *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	dk, Tq := Q.Dims()
	dkk, Tk := K.Dims()
	if dkk != dk {
		return nil, nil, fmt.Errorf("attention: Q has depth %d but K has depth %d", dk, dkk)
	}
	dv, Tv := V.Dims()
	if Tv != Tk {
		return nil, nil, fmt.Errorf("attention: K has %d timesteps but V has %d", Tk, Tv)
	}

	// S = (Q^T K) / sqrt(dk)
	scores := mat.NewDense(Tq, Tk, nil)
	scores.Mul(Q.T(), K)
	scores.Scale(1.0/math.Sqrt(float64(dk)), scores)

	var A *mat.Dense
	if mask != nil {
		mr, mc := mask.Dims()
		if mr != Tq || mc != Tk {
			return nil, nil, fmt.Errorf("attention: mask is (%d x %d), want (%d x %d)", mr, mc, Tq, Tk)
		}
		A = mat.NewDense(Tq, Tk, nil)
		utils.RowSoftmaxMaskedInPlace(A, scores, mask)
	} else {
		A = utils.RowSoftmax(scores)
	}

	// O = V A^T
	out := mat.NewDense(dv, Tq, nil)
	out.Mul(V, A.T())
	return out, A, nil
}

// Attention is causal multi-head self-attention: per-head linear projections
// of the input into queries, keys and values, scaled dot-product attention
// per head, concatenation, and an output projection.
type Attention struct {
	H      int
	DModel int
	DHead  int

	Wquery  []*mat.Dense // per head (dHead x dModel)
	Wkey    []*mat.Dense
	Wvalue  []*mat.Dense
	Woutput *mat.Dense // (dModel x dModel)

	// Performance optimization
	maskCache map[int]*mat.Dense
	parallel  bool // fan heads out to goroutines if true
}

func NewAttention(dModel, nHeads int) *Attention {
	if dModel%nHeads != 0 {
		panic("dModel must be divisible by nHeads")
	}
	dHead := dModel / nHeads
	attn := &Attention{
		H:         nHeads,
		DModel:    dModel,
		DHead:     dHead,
		Wquery:    make([]*mat.Dense, nHeads),
		Wkey:      make([]*mat.Dense, nHeads),
		Wvalue:    make([]*mat.Dense, nHeads),
		maskCache: make(map[int]*mat.Dense),
		parallel:  nHeads > 1,
	}
	for h := 0; h < nHeads; h++ {
		attn.Wquery[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
		attn.Wkey[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
		attn.Wvalue[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
	}
	attn.Woutput = mat.NewDense(dModel, dModel, utils.RandomArray(dModel*dModel, float64(dModel)))
	return attn
}

// Forward runs causal multi-head attention over X (dModel x T) and returns
// (dModel x T).
func (attn *Attention) Forward(X *mat.Dense) *mat.Dense {
	_, T := X.Dims() // T = number of columns (sequence length)
	headsCat := mat.NewDense(attn.DModel, T, nil)

	// cache mask by T
	mask, ok := attn.maskCache[T]
	if !ok {
		mask = utils.CausalMask(T)
		attn.maskCache[T] = mask
	}

	weights := make([]*mat.Dense, attn.H)
	work := func(h int) {
		var q, k, v mat.Dense
		q.Mul(attn.Wquery[h], X)
		k.Mul(attn.Wkey[h], X)
		v.Mul(attn.Wvalue[h], X)
		o, a, err := ScaledDotProduct(utils.ToDense(&q), utils.ToDense(&k), utils.ToDense(&v), mask)
		if err != nil {
			// projections guarantee compatible shapes
			panic(err)
		}
		weights[h] = a
		// concat into headsCat rows
		base := h * attn.DHead
		dst := headsCat.Slice(base, base+attn.DHead, 0, T).(*mat.Dense)
		dst.Copy(o)
	}
	if attn.parallel && attn.H > 1 {
		var wg sync.WaitGroup
		wg.Add(attn.H)
		for h := 0; h < attn.H; h++ {
			hh := h
			go func() { defer wg.Done(); work(hh) }()
		}
		wg.Wait()
	} else {
		for h := 0; h < attn.H; h++ {
			work(h)
		}
	}

	// Debug: quick sanity check on head 0 attention row sums.
	if params.Config.Debug && attn.H > 0 {
		rs := utils.RowSums(weights[0])
		mn, mx := rs[0], rs[0]
		for _, v := range rs {
			if v < mn {
				mn = v
			}
			if v > mx {
				mx = v
			}
		}
		fmt.Printf("Attn: head0 A row-sum min/max = %.4f/%.4f (T=%d)\n", mn, mx, len(rs))
	}

	return utils.ToDense(utils.Dot(attn.Woutput, headsCat)) // (dModel x T)
}

// -------- KV cache for inference (last-timestep only) --------

type AttnKV struct {
	K []*mat.Dense // per head: (dHead x t)
	V []*mat.Dense // per head: (dHead x t)
	T int
}

func newAttnKV(H int) AttnKV {
	return AttnKV{K: make([]*mat.Dense, H), V: make([]*mat.Dense, H), T: 0}
}

// appendCol returns a new matrix with one more column.
func appendCol(dst, col *mat.Dense) *mat.Dense {
	r, c := 0, 0
	if dst != nil {
		r, c = dst.Dims()
	} else {
		r = col.RawMatrix().Rows
	}
	if col.RawMatrix().Cols != 1 {
		panic("appendCol expects (r x 1) column")
	}
	out := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, dst.At(i, j))
		}
		out.Set(i, c, col.At(i, 0))
	}
	return out
}

// ForwardLastWithKV computes only the last timestep output using cached K,V.
// xLast: (dModel x 1), returns yLast: (dModel x 1). Updates kv in-place.
// The cache is capped at params.Config.SeqLen columns by dropping the oldest.
func (attn *Attention) ForwardLastWithKV(xLast *mat.Dense, kv *AttnKV) *mat.Dense {
	if kv.K == nil || len(kv.K) != attn.H {
		*kv = newAttnKV(attn.H)
	}
	rescale := 1.0 / math.Sqrt(float64(attn.DHead))
	headsCatLast := mat.NewDense(attn.DModel, 1, nil)
	for h := 0; h < attn.H; h++ {
		// q,k,v for last token
		var q, k, v mat.Dense
		q.Mul(attn.Wquery[h], xLast) // (dHead x 1)
		k.Mul(attn.Wkey[h], xLast)
		v.Mul(attn.Wvalue[h], xLast)
		// append to cache
		kv.K[h] = appendCol(kv.K[h], utils.ToDense(&k))
		kv.V[h] = appendCol(kv.V[h], utils.ToDense(&v))

		// cap cache length to SeqLen by dropping oldest columns
		if params.Config.SeqLen > 0 {
			if cols := kv.K[h].RawMatrix().Cols; cols > params.Config.SeqLen {
				start := cols - params.Config.SeqLen
				kv.K[h] = kv.K[h].Slice(0, kv.K[h].RawMatrix().Rows, start, cols).(*mat.Dense)
				kv.V[h] = kv.V[h].Slice(0, kv.V[h].RawMatrix().Rows, start, cols).(*mat.Dense)
			}
		}

		// scores for the last query only: (1 x t). Everything cached is in
		// the past, so no mask is needed.
		var s mat.Dense
		s.Mul(q.T(), kv.K[h])
		s.Scale(rescale, &s)
		Arow := utils.RowSoftmax(utils.ToDense(&s))
		// o = V * Arow^T => (dHead x 1)
		var o mat.Dense
		o.Mul(kv.V[h], Arow.T())
		base := h * attn.DHead
		dst := headsCatLast.Slice(base, base+attn.DHead, 0, 1).(*mat.Dense)
		dst.Copy(utils.ToDense(&o))
	}
	if kv.K[0] != nil {
		kv.T = kv.K[0].RawMatrix().Cols
	} else {
		kv.T = 0
	}
	var yLast mat.Dense
	yLast.Mul(attn.Woutput, headsCatLast)
	return utils.ToDense(&yLast)
}
