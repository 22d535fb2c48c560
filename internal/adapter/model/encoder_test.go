package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpecial = SpecialTokens{CLS: 101, SEP: 102, Pad: 0}

// wordTokenizer maps each whitespace separated word to a stable id
type wordTokenizer struct {
	framed bool
}

func (w wordTokenizer) Encode(text string) ([]int, error) {
	var ids []int
	if w.framed {
		ids = append(ids, testSpecial.CLS)
	}
	for _, word := range strings.Fields(text) {
		id := 1000
		for _, r := range word {
			id += int(r)
		}
		ids = append(ids, id)
	}
	if w.framed {
		ids = append(ids, testSpecial.SEP)
	}
	return ids, nil
}

type failingTokenizer struct{}

func (failingTokenizer) Encode(string) ([]int, error) {
	return nil, errors.New("vocabulary missing")
}

func mustEncode(t *testing.T, e *Encoder, sentences ...string) *Encoding {
	t.Helper()
	enc, err := e.Encode(sentences)
	require.NoError(t, err)
	return enc
}

func TestEncoder_Encode(t *testing.T) {
	t.Run("frames and pads to longest", func(t *testing.T) {
		enc := mustEncode(t, NewEncoder(wordTokenizer{}, testSpecial, 0), "no fever", "patient denies chest pain")

		require.Equal(t, 2, enc.BatchSize())
		assert.Equal(t, 6, enc.SeqLen)

		short := enc.InputIDs[0]
		assert.Len(t, short, 6)
		assert.Equal(t, int64(101), short[0])
		assert.Equal(t, int64(102), short[3])
		assert.Equal(t, []int64{0, 0}, short[4:])
		assert.Equal(t, []int64{1, 1, 1, 1, 0, 0}, enc.AttentionMask[0])

		long := enc.InputIDs[1]
		assert.Equal(t, int64(101), long[0])
		assert.Equal(t, int64(102), long[5])
		assert.Equal(t, []int64{1, 1, 1, 1, 1, 1}, enc.AttentionMask[1])

		assert.Equal(t, make([]int64, 6), enc.TokenTypeIDs[0])
	})

	t.Run("truncates to max length", func(t *testing.T) {
		long := strings.Repeat("word ", 1000)
		enc := mustEncode(t, NewEncoder(wordTokenizer{}, testSpecial, 0), long)

		assert.Equal(t, DefaultMaxLength, enc.SeqLen)
		row := enc.InputIDs[0]
		assert.Equal(t, int64(101), row[0])
		assert.Equal(t, int64(102), row[DefaultMaxLength-1])
	})

	t.Run("strips existing framing", func(t *testing.T) {
		plain := mustEncode(t, NewEncoder(wordTokenizer{}, testSpecial, 16), "no fever")
		framed := mustEncode(t, NewEncoder(wordTokenizer{framed: true}, testSpecial, 16), "no fever")

		assert.Equal(t, plain.InputIDs, framed.InputIDs)
	})

	t.Run("empty sentence keeps framing", func(t *testing.T) {
		enc := mustEncode(t, NewEncoder(wordTokenizer{}, testSpecial, 16), "")
		assert.Equal(t, [][]int64{{101, 102}}, enc.InputIDs)
	})

	t.Run("tokenizer error names the input", func(t *testing.T) {
		_, err := NewEncoder(failingTokenizer{}, testSpecial, 16).Encode([]string{"no fever"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "tokenize input 0")
		assert.Contains(t, err.Error(), "vocabulary missing")
	})
}

func TestNewEncoder_MaxLength(t *testing.T) {
	assert.Equal(t, DefaultMaxLength, NewEncoder(wordTokenizer{}, testSpecial, 0).MaxLength())
	assert.Equal(t, 2, NewEncoder(wordTokenizer{}, testSpecial, 1).MaxLength())
	assert.Equal(t, 128, NewEncoder(wordTokenizer{}, testSpecial, 128).MaxLength())
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3, 4}, Flatten([][]int64{{1, 2}, {3, 4}}))
	assert.Nil(t, Flatten(nil))
}
