package feature

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords contains common words excluded from term statistics.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "these": true, "those": true, "which": true, "who": true,
	"when": true, "where": true, "their": true, "there": true, "also": true,
	"les": true, "des": true, "une": true, "dans": true, "pour": true,
	"sur": true, "avec": true, "par": true, "est": true, "sont": true,
}

// Normalize lowercases text, strips punctuation, and drops tokens of two
// characters or fewer plus stopwords. The result is the canonical form used
// for content hashing.
func Normalize(text string) string {
	return strings.Join(tokens(text), " ")
}

// tokens splits text into ordered lowercase non-stopword tokens (duplicates kept,
// term frequency matters downstream).
func tokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var out []string
	for _, w := range words {
		if len(w) <= 2 || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// #endregion stopwords
