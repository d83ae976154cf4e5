package transformer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/params"
	"github.com/Pogjunan/GPT-understand/utils"
)

// Block is one pre-norm transformer layer: LayerNorm, multi-head attention,
// scaled residual, LayerNorm, feed-forward, scaled residual.
type Block struct {
	Attn *Attention
	Ffn  *FeedForward
	Ln1  *LayerNorm
	Ln2  *LayerNorm
}

func NewBlock(dModel, hidden, nHeads int) *Block {
	return &Block{
		Attn: NewAttention(dModel, nHeads),
		Ffn:  NewFeedForward(dModel, hidden),
		Ln1:  NewLayerNorm(dModel, params.Config.Eps),
		Ln2:  NewLayerNorm(dModel, params.Config.Eps),
	}
}

// Forward runs the block over X (dModel x T) with residuals.
func (b *Block) Forward(X *mat.Dense) *mat.Dense {
	d, _ := X.Dims()
	b.EnsureNorms(d)

	c := 1 / math.Sqrt(2)
	x1 := b.Ln1.Forward(X)
	attnOut := b.Attn.Forward(x1)
	xRes := utils.ToDense(utils.Add(X, utils.Scale(c, attnOut)))
	x2 := b.Ln2.Forward(xRes)
	ffnOut := b.Ffn.Forward(x2)
	return utils.ToDense(utils.Add(xRes, utils.Scale(c, ffnOut)))
}

// ForwardLastWithKV computes the block output for the newest timestep only,
// reusing cached keys/values for everything before it.
func (b *Block) ForwardLastWithKV(xLast *mat.Dense, kv *AttnKV) *mat.Dense {
	d, _ := xLast.Dims()
	b.EnsureNorms(d)

	c := 1 / math.Sqrt(2)
	n1 := b.Ln1.ForwardCol(xLast)
	attnOut := b.Attn.ForwardLastWithKV(n1, kv) // (dModel x 1)
	x1 := utils.ToDense(utils.Add(xLast, utils.Scale(c, attnOut)))
	n2 := b.Ln2.ForwardCol(x1)
	ffnOut := b.Ffn.ForwardCol(n2) // (dModel x 1)
	return utils.ToDense(utils.Add(x1, utils.Scale(c, ffnOut)))
}

// EnsureNorms lazily allocates LayerNorms for callers that build Blocks by hand.
func (b *Block) EnsureNorms(d int) {
	if b.Ln1 == nil {
		b.Ln1 = NewLayerNorm(d, params.Config.Eps)
	}
	if b.Ln2 == nil {
		b.Ln2 = NewLayerNorm(d, params.Config.Eps)
	}
}
