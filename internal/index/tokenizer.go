package index

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTokenLength = 2

// Tokenize splits text into search terms: lowercase, split on
// non-alphanumeric boundaries, tokens shorter than two characters
// dropped. No stemming.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}

	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// TermCounts returns per-term occurrence counts for the given text.
func TermCounts(text string) map[string]int {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts
}
