// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, splits on non-word boundaries, drops short tokens and
// stop-words, and caps the number of tokens kept per text. Indexing and
// querying both go through Tokenize, so a term is only findable if both sides
// normalise it the same way.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTokens is the number of tokens kept from a single text.
const MaxTokens = 1000

// minTermLength is the shortest term kept; shorter tokens are noise.
const minTermLength = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "nor": {}, "yet": {},
	"are": {}, "was": {}, "were": {}, "been": {}, "being": {}, "have": {},
	"has": {}, "had": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "shall": {}, "may": {}, "might": {}, "must": {},
	"can": {}, "what": {}, "when": {}, "where": {}, "who": {}, "whom": {},
	"which": {}, "why": {}, "how": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "its": {}, "they": {}, "them": {}, "their": {}, "you": {},
	"your": {}, "our": {}, "ours": {}, "she": {}, "him": {}, "her": {},
	"his": {}, "with": {}, "from": {}, "into": {}, "about": {}, "not": {},
	"all": {}, "any": {}, "there": {}, "here": {}, "than": {}, "then": {},
	"also": {}, "just": {}, "very": {}, "some": {}, "such": {}, "each": {},
}

// Token represents a single normalised term and its position in the
// filtered token stream.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens with short tokens and
// stop-words removed, keeping at most MaxTokens.
func Tokenize(text string) []Token {
	return TokenizeN(text, MaxTokens)
}

// TokenizeN is Tokenize with an explicit token cap. A non-positive limit
// disables the cap.
func TokenizeN(text string, limit int) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		if limit > 0 && len(tokens) >= limit {
			break
		}
		if utf8.RuneCountInString(word) < minTermLength {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns just the term strings of Tokenize(text).
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// IsStopWord reports whether word is in the stop-word set.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

// StopWordCount returns the size of the stop-word set.
func StopWordCount() int {
	return len(stopWords)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
