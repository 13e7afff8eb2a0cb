// Package tokenizer splits UTF-8 text on Unicode word boundaries (UAX #29),
// dropping purely whitespace segments. Tokenization is a pure function of
// the input bytes, so identical input always produces identical output.
package tokenizer

import "github.com/clipperhouse/uax29/v2/words"

// Token pairs a token's text with its starting byte offset in the source text.
type Token struct {
	Text   string
	Offset int
}

// Tokenize splits text into word-like tokens, dropping whitespace-only
// segments such as spaces and newlines.
func Tokenize(text string) []string {
	var out []string
	seg := words.FromString(text)
	for seg.Next() {
		v := seg.Value()
		if isWord(v) {
			out = append(out, v)
		}
	}
	return out
}

// TokenizeIndices splits text into (byte_offset, token) pairs, dropping
// whitespace-only segments. byte_offset is the token's start offset in text.
func TokenizeIndices(text string) []Token {
	var out []Token
	seg := words.FromString(text)
	for seg.Next() {
		v := seg.Value()
		if isWord(v) {
			out = append(out, Token{Text: v, Offset: seg.Start()})
		}
	}
	return out
}

// isWord reports whether a UAX #29 word segment is a "real" word rather than
// pure whitespace (spaces, tabs, newlines between words).
func isWord(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' && r != '\v' && r != '\f' {
			return true
		}
	}
	return false
}
