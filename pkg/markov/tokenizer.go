package markov

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer is an interface that defines the contract for splitting a sample
// into tokens. The chain logic only ever sees tokens, so word and character
// models share the same ingestion and generation code.
type Tokenizer interface {
	// Split returns the tokens of a sample, in order.
	Split(sample string) []string
	// Separator returns the string used both to join the tokens of a key
	// and to join tokens in generated output.
	Separator() string
}

// WordTokenizer splits samples on runs of whitespace. Its tokens never contain
// whitespace, so joining them with a single space is unambiguous.
type WordTokenizer struct{}

// NewWordTokenizer creates a tokenizer that operates on whitespace-delimited words.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

// Split Returns the whitespace-delimited words of the sample.
func (WordTokenizer) Split(sample string) []string {
	return strings.Fields(sample)
}

// Separator Returns a single space.
func (WordTokenizer) Separator() string {
	return " "
}

// CharTokenizer splits samples into individual characters (runes).
type CharTokenizer struct{}

// NewCharTokenizer creates a tokenizer that operates on single characters.
func NewCharTokenizer() *CharTokenizer {
	return &CharTokenizer{}
}

// Split Returns one token per rune of the sample. Invalid UTF-8 bytes are
// kept as single-byte tokens so no input is silently lost.
func (CharTokenizer) Split(sample string) []string {
	tokens := make([]string, 0, utf8.RuneCountInString(sample))
	for i := 0; i < len(sample); {
		_, size := utf8.DecodeRuneInString(sample[i:])
		tokens = append(tokens, sample[i:i+size])
		i += size
	}
	return tokens
}

// Separator Returns the empty string; characters are concatenated directly.
func (CharTokenizer) Separator() string {
	return ""
}

// TokenizerByName resolves a granularity name ("word" or "char") to a
// Tokenizer. The boolean is false for unknown names.
func TokenizerByName(name string) (Tokenizer, bool) {
	switch strings.ToLower(name) {
	case "", "word", "words":
		return NewWordTokenizer(), true
	case "char", "chars", "character", "characters":
		return NewCharTokenizer(), true
	default:
		return nil, false
	}
}
