package params

import "gonum.org/v1/gonum/mat"

// Vocabulary maps between token strings and their integer IDs.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

// Vocab is filled in once the tokenizer (or a vocab.json) is loaded.
var Vocab Vocabulary

// Shared model tables, published by the encoder on construction.
var (
	Emb    *mat.Dense // (dModel x |V|)
	PosEmb *mat.Dense // (dModel x SeqLen), fixed sinusoidal by default
)

type ModelConfig struct {
	// Core transformer parameters
	DModel     int // model width
	HiddenSize int // feed-forward hidden width
	VocabSize  int // |V|
	NumHeads   int // attention heads; dHead = DModel/NumHeads
	SeqLen     int // max context length
	Layers     int // attn --> mlp repetitions

	Eps float64 // layer norm epsilon

	Debug bool // enable periodic debug logs
}

var Config = ModelConfig{
	DModel:     64,
	HiddenSize: 256,
	VocabSize:  2048,
	NumHeads:   8,
	SeqLen:     128,
	Layers:     6,

	Eps: 1e-5,

	Debug: false,
}
