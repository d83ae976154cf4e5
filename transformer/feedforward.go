package transformer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/utils"
)

// FeedForward is the position-wise sublayer applied after attention:
// a widening linear layer, GELU, and a projection back to dModel. It acts
// on every column (timestep) independently.
type FeedForward struct {
	Inputs, Hiddens, Outputs  int
	HiddenWeights, HiddenBias *mat.Dense
	OutputWeights, OutputBias *mat.Dense
}

func NewFeedForward(dModel, hidden int) *FeedForward {
	return &FeedForward{
		Inputs:        dModel,
		Hiddens:       hidden,
		Outputs:       dModel,
		HiddenWeights: mat.NewDense(hidden, dModel, utils.RandomArray(dModel*hidden, float64(dModel))),
		HiddenBias:    mat.NewDense(hidden, 1, nil),
		OutputWeights: mat.NewDense(dModel, hidden, utils.RandomArray(hidden*dModel, float64(hidden))),
		OutputBias:    mat.NewDense(dModel, 1, nil),
	}
}

func (ff *FeedForward) Forward(X *mat.Dense) *mat.Dense {
	hiddenLin := utils.ToDense(utils.Dot(ff.HiddenWeights, X)) // (h x T)
	hiddenWithBias := utils.AddBias(hiddenLin, ff.HiddenBias)
	hiddenOut := utils.Apply(utils.GeluApply, hiddenWithBias).(*mat.Dense)
	finalLin := utils.ToDense(utils.Dot(ff.OutputWeights, hiddenOut)) // (d x T)
	return utils.AddBias(finalLin, ff.OutputBias)
}

// ForwardCol: one column only, returns (dModel x 1).
func (ff *FeedForward) ForwardCol(xCol *mat.Dense) *mat.Dense {
	var h mat.Dense
	h.Mul(ff.HiddenWeights, xCol) // (h x 1)
	hb := utils.AddBias(utils.ToDense(&h), ff.HiddenBias)
	hs := utils.Apply(utils.GeluApply, hb).(*mat.Dense)
	var o mat.Dense
	o.Mul(ff.OutputWeights, hs)
	return utils.AddBias(utils.ToDense(&o), ff.OutputBias)
}
