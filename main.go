package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Pogjunan/GPT-understand/embedding"
	"github.com/Pogjunan/GPT-understand/params"
	"github.com/Pogjunan/GPT-understand/tokenizer"
	"github.com/Pogjunan/GPT-understand/transformer"
	"github.com/Pogjunan/GPT-understand/utils"
)

var (
	corpusFlag    string
	tokPathFlag   string
	vocabSizeFlag int
	demoFlag      string
	exportFlag    string
)

func init() {
	flag.StringVar(&corpusFlag, "corpus", "", "Text corpus to train the BPE tokenizer on (training is delegated to the tokenizer library)")
	flag.StringVar(&tokPathFlag, "tokenizer", "data/tokenizer.json", "Path of the saved tokenizer")
	flag.IntVar(&vocabSizeFlag, "vocab-size", params.Config.VocabSize, "Target subword vocab size")
	flag.StringVar(&demoFlag, "demo", "", "Run text through embedding + positional encoding + encoder stack")
	flag.StringVar(&exportFlag, "export-vocab", "", "Write the loaded vocab as JSON to this path")
}

func main() {
	flag.Parse()

	if corpusFlag != "" {
		fmt.Println("Training (or loading) BPE tokenizer...")
		if err := tokenizer.TrainOrLoad(corpusFlag, tokPathFlag, vocabSizeFlag); err != nil {
			fmt.Fprintln(os.Stderr, "tokenizer:", err)
			os.Exit(1)
		}
		fmt.Printf("Tokenizer ready, |V| = %d\n", len(params.Vocab.IDToToken))
	}

	if exportFlag != "" {
		if err := ensureVocab(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := tokenizer.ExportVocabJSON(exportFlag); err != nil {
			fmt.Fprintln(os.Stderr, "export:", err)
			os.Exit(1)
		}
		fmt.Println("Exported vocab to", exportFlag)
	}

	if demoFlag != "" {
		if err := runDemo(demoFlag); err != nil {
			fmt.Fprintln(os.Stderr, "demo:", err)
			os.Exit(1)
		}
	}

	if corpusFlag == "" && demoFlag == "" && exportFlag == "" {
		fmt.Println("No flag passed. Use -corpus to prepare a tokenizer, -demo \"text\" to run the encoder.")
	}
}

func ensureVocab() error {
	if params.Vocab.TokenToID != nil {
		return nil
	}
	if fileExists(tokPathFlag) {
		return tokenizer.TrainOrLoad("", tokPathFlag, vocabSizeFlag)
	}
	return fmt.Errorf("no vocab loaded; run with -corpus first")
}

// runDemo walks one sentence through the whole pipeline and prints what the
// shapes look like at each stage.
func runDemo(text string) error {
	if err := ensureVocab(); err != nil {
		return err
	}
	ids, err := tokenizer.Encode(text)
	if err != nil {
		return err
	}
	if len(ids) > params.Config.SeqLen {
		ids = ids[:params.Config.SeqLen]
	}
	fmt.Printf("Token IDs (%d): %v\n", len(ids), ids)

	cfg := params.Config
	cfg.VocabSize = len(params.Vocab.IDToToken)
	enc := transformer.NewEncoder(cfg)

	X, err := enc.Emb.LookupSeq(ids)
	if err != nil {
		return err
	}
	r, c := X.Dims()
	fmt.Printf("Embedded: (%d x %d)\n", r, c)

	X, err = embedding.AddPositional(X, enc.Pos)
	if err != nil {
		return err
	}

	Y := enc.Forward(X)
	r, c = Y.Dims()
	fmt.Printf("Encoder output: (%d x %d), last-column norm %.4f\n",
		r, c, utils.MatrixNorm(utils.LastCol(Y)))
	utils.PrintMatrix(utils.LastCol(Y), "y_last")
	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
