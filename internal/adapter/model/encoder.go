package model

import "fmt"

// DefaultMaxLength is the BERT position limit sequences are truncated to
const DefaultMaxLength = 512

// Tokenizer turns text into vocabulary ids
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// SpecialTokens holds the ids framing and padding a BERT sequence
type SpecialTokens struct {
	CLS int
	SEP int
	Pad int
}

// Encoding is a padded batch of token ids, one row per input, all rows of SeqLen
type Encoding struct {
	InputIDs      [][]int64
	AttentionMask [][]int64
	TokenTypeIDs  [][]int64
	SeqLen        int
}

// BatchSize returns the number of rows
func (e *Encoding) BatchSize() int {
	return len(e.InputIDs)
}

// Flatten returns rows concatenated in row-major order
func Flatten(rows [][]int64) []int64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]int64, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// Encoder tokenizes sentences into model inputs with truncation and padding
type Encoder struct {
	tokenizer Tokenizer
	special   SpecialTokens
	maxLength int
}

// NewEncoder creates an encoder; maxLength <= 0 uses DefaultMaxLength
func NewEncoder(tokenizer Tokenizer, special SpecialTokens, maxLength int) *Encoder {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	// [CLS] and [SEP] always fit.
	if maxLength < 2 {
		maxLength = 2
	}
	return &Encoder{
		tokenizer: tokenizer,
		special:   special,
		maxLength: maxLength,
	}
}

// MaxLength returns the truncation limit including special tokens
func (e *Encoder) MaxLength() int {
	return e.maxLength
}

// Encode tokenizes sentences together, padding every row to the longest one
func (e *Encoder) Encode(sentences []string) (*Encoding, error) {
	seqs := make([][]int64, len(sentences))
	longest := 0
	for i, s := range sentences {
		seq, err := e.sequence(s)
		if err != nil {
			return nil, fmt.Errorf("tokenize input %d: %w", i, err)
		}
		seqs[i] = seq
		if len(seq) > longest {
			longest = len(seqs[i])
		}
	}

	enc := &Encoding{
		InputIDs:      make([][]int64, len(seqs)),
		AttentionMask: make([][]int64, len(seqs)),
		TokenTypeIDs:  make([][]int64, len(seqs)),
		SeqLen:        longest,
	}
	for i, seq := range seqs {
		ids := make([]int64, longest)
		mask := make([]int64, longest)
		copy(ids, seq)
		for j := range ids {
			if j < len(seq) {
				mask[j] = 1
			} else {
				ids[j] = int64(e.special.Pad)
			}
		}
		enc.InputIDs[i] = ids
		enc.AttentionMask[i] = mask
		enc.TokenTypeIDs[i] = make([]int64, longest)
	}
	return enc, nil
}

// sequence frames one sentence as [CLS] tokens [SEP], truncated to maxLength
func (e *Encoder) sequence(sentence string) ([]int64, error) {
	ids, err := e.tokenizer.Encode(sentence)
	if err != nil {
		return nil, err
	}

	// Some tokenizers already add the framing tokens.
	if len(ids) > 0 && ids[0] == e.special.CLS {
		ids = ids[1:]
	}
	if len(ids) > 0 && ids[len(ids)-1] == e.special.SEP {
		ids = ids[:len(ids)-1]
	}

	if body := e.maxLength - 2; len(ids) > body {
		ids = ids[:body]
	}

	seq := make([]int64, 0, len(ids)+2)
	seq = append(seq, int64(e.special.CLS))
	for _, id := range ids {
		seq = append(seq, int64(id))
	}
	seq = append(seq, int64(e.special.SEP))
	return seq, nil
}
