package index

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold strips combining marks: "Émile" becomes "Emile".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokenize splits s into lowercase words without diacritics. Anything that
// is neither a letter nor a digit separates words.
func Tokenize(s string) []string {
	words := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

// Normalize joins the tokens of s, the key under which a single word query
// is looked up.
func Normalize(s string) string {
	return strings.Join(Tokenize(s), "")
}
