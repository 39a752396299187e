package passage

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenize splits text into lowercase search terms. Text is NFKC-normalized
// first so visually equivalent Unicode forms (fullwidth letters, ligatures)
// produce the same terms, then split on anything that is not a letter or
// digit. Duplicates are preserved; use TermSet for membership checks.
func Tokenize(text string) []string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TermSet returns the unique terms of text.
func TermSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// TermOverlap scores how much of the query vocabulary appears in content:
// |query terms ∩ content terms| / |query terms|, in [0, 1]. This is the
// default keyword scheme used by the in-memory index.
func TermOverlap(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		unique[t] = struct{}{}
	}
	contentSet := TermSet(content)
	matched := 0
	for t := range unique {
		if _, ok := contentSet[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(unique))
}
