package model

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer files looked up in a model repository
const (
	vocabFile           = "vocab.txt"
	tokenizerFile       = "tokenizer.json"
	tokenizerConfigFile = "tokenizer_config.json"
)

// TokenizerSettings is the part of tokenizer_config.json needed to rebuild a BERT tokenizer
type TokenizerSettings struct {
	DoLowerCase bool
	CLSToken    string
	SEPToken    string
	PadToken    string
	UnkToken    string
}

// DefaultTokenizerSettings matches the HuggingFace BertTokenizer defaults
func DefaultTokenizerSettings() TokenizerSettings {
	return TokenizerSettings{
		DoLowerCase: true,
		CLSToken:    "[CLS]",
		SEPToken:    "[SEP]",
		PadToken:    "[PAD]",
		UnkToken:    "[UNK]",
	}
}

// ParseTokenizerSettings overlays tokenizer_config.json on the defaults.
// Special tokens may be plain strings or {"content": ...} objects.
func ParseTokenizerSettings(data []byte) (TokenizerSettings, error) {
	var raw struct {
		DoLowerCase *bool           `json:"do_lower_case"`
		CLSToken    json.RawMessage `json:"cls_token"`
		SEPToken    json.RawMessage `json:"sep_token"`
		PadToken    json.RawMessage `json:"pad_token"`
		UnkToken    json.RawMessage `json:"unk_token"`
	}
	settings := DefaultTokenizerSettings()
	if err := json.Unmarshal(data, &raw); err != nil {
		return settings, fmt.Errorf("parse %s: %w", tokenizerConfigFile, err)
	}
	if raw.DoLowerCase != nil {
		settings.DoLowerCase = *raw.DoLowerCase
	}
	overrideToken(&settings.CLSToken, raw.CLSToken)
	overrideToken(&settings.SEPToken, raw.SEPToken)
	overrideToken(&settings.PadToken, raw.PadToken)
	overrideToken(&settings.UnkToken, raw.UnkToken)
	return settings, nil
}

func overrideToken(dst *string, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s != "" {
			*dst = s
		}
		return
	}
	var added struct {
		Content string `json:"content"`
	}
	if json.Unmarshal(raw, &added) == nil && added.Content != "" {
		*dst = added.Content
	}
}

func readTokenizerSettings(path string) (TokenizerSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultTokenizerSettings(), fmt.Errorf("read %s: %w", tokenizerConfigFile, err)
	}
	return ParseTokenizerSettings(data)
}

// BertTokenizer splits text into WordPiece ids. Framing tokens are left to the Encoder.
type BertTokenizer struct {
	tk *tokenizer.Tokenizer
}

// NewWordPieceTokenizer builds a BERT tokenizer from a vocab.txt file
func NewWordPieceTokenizer(vocabPath string, settings TokenizerSettings) (*BertTokenizer, error) {
	model, err := wordpiece.NewWordPieceFromFile(vocabPath, settings.UnkToken)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", vocabFile, err)
	}
	tk := tokenizer.NewTokenizer(model)
	// HuggingFace strips accents whenever it lowercases, unless told otherwise.
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, settings.DoLowerCase, true, settings.DoLowerCase))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())
	return &BertTokenizer{tk: tk}, nil
}

// LoadTokenizerJSON builds a tokenizer from a HuggingFace tokenizer.json file
func LoadTokenizerJSON(path string) (*BertTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tokenizerFile, err)
	}
	return &BertTokenizer{tk: tk}, nil
}

// Encode returns the ids of the real tokens in text, without [CLS], [SEP] or padding
func (b *BertTokenizer) Encode(text string) ([]int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	en, err := b.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, err
	}
	ids := en.Ids
	// tokenizer.json files may carry a padding setup; keep only attended positions.
	if len(en.AttentionMask) == len(ids) {
		kept := make([]int, 0, len(ids))
		for i, id := range ids {
			if en.AttentionMask[i] != 0 {
				kept = append(kept, id)
			}
		}
		if len(kept) > 0 {
			ids = kept
		}
	}
	return ids, nil
}

// SpecialTokens resolves the framing and padding ids from the vocabulary
func (b *BertTokenizer) SpecialTokens(settings TokenizerSettings) (SpecialTokens, error) {
	cls, ok := b.tk.TokenToId(settings.CLSToken)
	if !ok {
		return SpecialTokens{}, fmt.Errorf("tokenizer vocabulary has no %s token", settings.CLSToken)
	}
	sep, ok := b.tk.TokenToId(settings.SEPToken)
	if !ok {
		return SpecialTokens{}, fmt.Errorf("tokenizer vocabulary has no %s token", settings.SEPToken)
	}
	pad, ok := b.tk.TokenToId(settings.PadToken)
	if !ok {
		// BERT vocabularies put [PAD] at 0.
		pad = 0
	}
	return SpecialTokens{CLS: cls, SEP: sep, Pad: pad}, nil
}
