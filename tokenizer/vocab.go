package tokenizer

import (
	"encoding/json"
	"os"

	"github.com/Pogjunan/GPT-understand/params"
)

// ExportVocabJSON writes TokenToID/IDToToken from params.Vocab to path.
func ExportVocabJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data := map[string]any{
		"TokenToID": params.Vocab.TokenToID,
		"IDToToken": params.Vocab.IDToToken,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ImportVocabJSON loads vocab.json into params.Vocab.
func ImportVocabJSON(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var data struct {
		TokenToID map[string]int `json:"TokenToID"`
		IDToToken []string       `json:"IDToToken"`
	}
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return err
	}
	params.Vocab = params.Vocabulary{
		TokenToID: data.TokenToID,
		IDToToken: data.IDToToken,
	}
	return nil
}

// Pieces splits text against an already-loaded vocab by greedy longest match
// (4 bytes down to 1). It lowercases and replaces non-ASCII bytes with spaces.
// A fallback for when no BPE tokenizer file is available.
func Pieces(s string) []string {
	b := make([]rune, 0, len(s))
	for _, c := range s {
		if c >= 'A' && c <= 'Z' {
			c = c + 32
		}
		if c < 0x80 {
			b = append(b, c)
		} else {
			b = append(b, ' ')
		}
	}
	text := string(b)

	out := make([]string, 0, len(text))
	i := 0
	for i < len(text) {
		matched := false
		for k := 4; k >= 1; k-- {
			if i+k <= len(text) {
				piece := text[i : i+k]
				if params.Vocab.TokenToID != nil {
					if _, ok := params.Vocab.TokenToID[piece]; ok {
						out = append(out, piece)
						i += k
						matched = true
						break
					}
				}
			}
		}
		if !matched {
			// default: single char (covers space too)
			out = append(out, text[i:i+1])
			i++
		}
	}
	return out
}
