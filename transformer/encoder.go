package transformer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/embedding"
	"github.com/Pogjunan/GPT-understand/params"
	"github.com/Pogjunan/GPT-understand/utils"
)

// Encoder stacks transformer blocks on top of a token embedding table and a
// fixed sinusoidal positional table.
type Encoder struct {
	Blocks []*Block
	Emb    *embedding.Table
	Pos    *mat.Dense // (dModel x SeqLen)
}

func NewEncoder(cfg params.ModelConfig) *Encoder {
	numHeads := utils.ChooseValidHeads(cfg.DModel, cfg.NumHeads)

	enc := &Encoder{
		Blocks: make([]*Block, cfg.Layers),
		Emb:    embedding.NewTable(cfg.DModel, cfg.VocabSize),
		Pos:    embedding.Sinusoidal(cfg.DModel, cfg.SeqLen),
	}
	for i := range enc.Blocks {
		enc.Blocks[i] = NewBlock(cfg.DModel, cfg.HiddenSize, numHeads)
	}

	// publish the shared tables, as the tokenizer does for the vocab
	params.Emb = enc.Emb.W
	params.PosEmb = enc.Pos
	return enc
}

// Forward runs the block stack over an already-embedded sequence (dModel x T).
func (e *Encoder) Forward(X *mat.Dense) *mat.Dense {
	Y := X
	for _, b := range e.Blocks {
		Y = b.Forward(Y)
	}
	return Y
}

// Encode embeds a token-ID sequence, adds positional encodings and runs the
// block stack. Returns (dModel x T).
func (e *Encoder) Encode(ids []int) (*mat.Dense, error) {
	X, err := e.Emb.LookupSeq(ids)
	if err != nil {
		return nil, err
	}
	X, err = embedding.AddPositional(X, e.Pos)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return e.Forward(X), nil
}

// EncodeLastWithKV advances the encoder by one token using per-block KV
// caches. pos is the absolute position of the token; kvs must have one entry
// per block and persists across calls.
func (e *Encoder) EncodeLastWithKV(id, pos int, kvs []AttnKV) (*mat.Dense, error) {
	if len(kvs) != len(e.Blocks) {
		return nil, fmt.Errorf("encode: %d kv caches for %d blocks", len(kvs), len(e.Blocks))
	}
	_, maxLen := e.Pos.Dims()
	if pos < 0 || pos >= maxLen {
		return nil, fmt.Errorf("encode: position %d outside positional table [0,%d)", pos, maxLen)
	}
	x, err := e.Emb.Lookup(id)
	if err != nil {
		return nil, err
	}
	for i := 0; i < x.RawMatrix().Rows; i++ {
		x.Set(i, 0, x.At(i, 0)+e.Pos.At(i, pos))
	}
	y := x
	for i, b := range e.Blocks {
		y = b.ForwardLastWithKV(y, &kvs[i])
	}
	return y, nil
}
