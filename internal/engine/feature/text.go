// Package feature turns expense records into the numeric vectors and
// bucketed time series shared by all three model subsystems. Extraction
// is a pure function of the record and a fitted schema, so training and
// serving see identical feature semantics.
package feature

import (
	"strings"
	"unicode"
)

// stopWords are dropped during tokenization.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {},
	"inc": {}, "llc": {}, "ltd": {}, "corp": {},
}

// numToken replaces digit runs so "invoice 4412" and "invoice 9" share a
// token.
const numToken = "num"

// Tokenize lowercases, strips punctuation, collapses digit runs to a
// single num token, and drops stop words and tokens shorter than three
// characters.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text))
	inDigits := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsDigit(r):
			if !inDigits {
				b.WriteString(" " + numToken + " ")
				inDigits = true
			}
		case unicode.IsLetter(r):
			b.WriteRune(r)
			inDigits = false
		default:
			b.WriteRune(' ')
			inDigits = false
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if tok != numToken && len(tok) < 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// RecordText combines the free-text fields of a record into the string
// the text features are extracted from.
func RecordText(vendor, description string) string {
	return strings.TrimSpace(vendor + " " + description)
}
