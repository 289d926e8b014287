package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	folder = cases.Fold()
	// NFD, drop combining marks, recompose
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// CaseKey case-folds s and collapses whitespace. Punctuation is kept so
// "C++" and "C#" stay distinct.
func CaseKey(s string) string {
	return strings.Join(strings.Fields(folder.String(s)), " ")
}

// FoldKey is the lookup key for labels and free-text segments: case-folded,
// diacritics removed, punctuation turned into spaces, whitespace collapsed.
func FoldKey(s string) string {
	s = folder.String(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits a FoldKey into its words.
func Tokens(s string) []string {
	return strings.Fields(FoldKey(s))
}

// Jaccard is the token-set overlap of a and b in [0,1].
func Jaccard(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
