// Package embedding maps discrete token IDs to continuous vectors.
// A token's embedding is one column of a (dModel x |V|) table; a sequence
// of T tokens becomes a (dModel x T) matrix with one column per timestep.
package embedding

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Pogjunan/GPT-understand/params"
	"github.com/Pogjunan/GPT-understand/utils"
)

// Table is a token-embedding matrix, one column per vocab entry.
type Table struct {
	DModel int
	W      *mat.Dense // (dModel x |V|)
}

// NewTable initializes an embedding table with small random values.
func NewTable(dModel, vocabSize int) *Table {
	data := utils.RandomArray(dModel*vocabSize, float64(dModel))
	return &Table{
		DModel: dModel,
		W:      mat.NewDense(dModel, vocabSize, data),
	}
}

// Lookup returns the embedding column for a single token ID.
func (t *Table) Lookup(id int) (*mat.Dense, error) {
	_, v := t.W.Dims()
	if id < 0 || id >= v {
		return nil, fmt.Errorf("embedding: id %d out of range [0,%d)", id, v)
	}
	out := mat.NewDense(t.DModel, 1, nil)
	for i := 0; i < t.DModel; i++ {
		out.Set(i, 0, t.W.At(i, id))
	}
	return out, nil
}

// LookupSeq gathers embeddings for a token sequence into a (dModel x T) matrix.
func (t *Table) LookupSeq(ids []int) (*mat.Dense, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("embedding: empty id sequence")
	}
	_, v := t.W.Dims()
	out := mat.NewDense(t.DModel, len(ids), nil)
	for j, id := range ids {
		if id < 0 || id >= v {
			return nil, fmt.Errorf("embedding: id %d at position %d out of range [0,%d)", id, j, v)
		}
		for i := 0; i < t.DModel; i++ {
			out.Set(i, j, t.W.At(i, id))
		}
	}
	return out, nil
}

// LookupID maps a token string to its ID, falling back to <unk>.
func LookupID(v params.Vocabulary, tok string) int {
	if id, ok := v.TokenToID[tok]; ok {
		return id
	}
	return v.TokenToID["<unk>"]
}
