package embedding

import (
	"strings"
	"unicode"
)

// Special token IDs of the RoBERTa vocabulary used by CLAP text encoders.
const (
	tokenBOS   = 0
	tokenPad   = 1
	tokenEOS   = 2
	vocabFirst = 4
	vocabSize  = 50265
)

// Tokenizer produces padded token IDs and the matching attention mask.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64)
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs. It is a
// fallback for models shipped without a vocabulary file.
type SimpleTokenizer struct{}

// Tokenize lowercases text, splits it into words and produces BOS, the word IDs, EOS,
// then padding up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	if maxTokens < 2 {
		maxTokens = 77
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = tokenPad
	}

	inputIDs[0] = tokenBOS
	attentionMask[0] = 1
	pos := 1
	for _, word := range SplitWords(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(vocabFirst + HashString(word)%(vocabSize-vocabFirst))
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = tokenEOS
	attentionMask[pos] = 1
	return inputIDs, attentionMask
}

// SplitWords splits text on anything that is not a letter or digit and returns the
// non-empty words.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 { // math.MinInt
		h = 0
	}
	return h
}
