// Package tokenizer wraps a subword (BPE) tokenizer. Vocabulary construction
// is delegated entirely to the sugarme/tokenizer library; this package only
// configures it, runs it, and mirrors the resulting vocab into params.Vocab.
package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/models"
	"github.com/sugarme/tokenizer/normalizers"
	"github.com/sugarme/tokenizer/pretokenizers"
	"github.com/sugarme/tokenizer/processors"
	"github.com/sugarme/tokenizer/trainers"

	"github.com/Pogjunan/GPT-understand/params"
)

// Special tokens kept at the start of the vocab.
var special = []string{"<pad>", "<bos>", "<eos>", "<unk>"}

// Global tokenizer used by the CLI and encoders.
var bpeTokenizer *tk.Tokenizer

// TrainOrLoad trains a BPE tokenizer on corpusPath (if tokPath is not found)
// and loads it into memory. It also fills params.Vocab with TokenToID/IDToToken.
func TrainOrLoad(corpusPath, tokPath string, vocabSize int) error {
	if fileExists(tokPath) {
		t, err := tk.FromFile(tokPath)
		if err != nil {
			return err
		}
		bpeTokenizer = t
		return fillParamsVocab()
	}

	bpe := models.NewBPE()
	t := tk.NewTokenizer(bpe)

	// Normalize to NFKC lower for English
	t.WithNormalizer(normalizers.NewSequence(
		normalizers.NewNFKC(),
		normalizers.NewLowercase(),
	))
	// Pretokenizer: whitespace is robust and simple
	t.WithPreTokenizer(pretokenizers.NewWhitespaceSplit())

	// Add BOS/EOS handling via template processor so decode stays robust.
	proc := processors.NewTemplateProcessing(
		"<bos> $A <eos>",
		"$A",
		specialIDs(),
	)
	t.WithPostProcessor(proc)

	tr := trainers.NewBpeTrainer()
	tr.VocabSize = vocabSize
	tr.SpecialTokens = special

	if err := t.Train(tr, []string{corpusPath}); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(tokPath), 0o755); err != nil {
		return err
	}
	if err := t.Save(tokPath); err != nil {
		return err
	}
	bpeTokenizer = t
	return fillParamsVocab()
}

// specialIDs maps each special token to the id the trainer assigns it:
// its position at the front of the vocab.
func specialIDs() map[string]int {
	out := make(map[string]int, len(special))
	for i, tok := range special {
		out[tok] = i
	}
	return out
}

func fillParamsVocab() error {
	if bpeTokenizer == nil {
		return fmt.Errorf("tokenizer not initialized")
	}
	vocab := bpeTokenizer.GetVocab(true)
	// Build IDToToken in index order 0..N-1
	id2tok := make([]string, len(vocab))
	tok2id := make(map[string]int, len(vocab))
	for tok, id := range vocab {
		tok2id[tok] = id
		id2tok[id] = tok
	}
	params.Vocab = params.Vocabulary{TokenToID: tok2id, IDToToken: id2tok}
	return nil
}

// Encode encodes raw text into token IDs (without BOS/EOS).
func Encode(text string) ([]int, error) {
	if bpeTokenizer == nil {
		return nil, fmt.Errorf("tokenizer not initialized")
	}
	enc, err := bpeTokenizer.EncodeSingle(text)
	if err != nil {
		return nil, err
	}
	ids := enc.Ids
	out := make([]int, len(ids))
	for i, v := range ids {
		out[i] = int(v)
	}
	return out, nil
}

// Decode turns token IDs back into text, skipping special tokens.
func Decode(ids []int) (string, error) {
	if bpeTokenizer == nil {
		return "", fmt.Errorf("tokenizer not initialized")
	}
	return bpeTokenizer.Decode(ids, true), nil
}

// Loaded reports whether a tokenizer is in memory.
func Loaded() bool {
	return bpeTokenizer != nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
