package acquire

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	scannedMinChars      = 100
	scannedMinDensity    = 0.08
	scannedMinDistinctCh = 20
)

var reWord = regexp.MustCompile(`\p{L}{2,}`)

// DetectIfScanned reports whether a text layer looks like it came from a
// scan: too short, too few word-like runs, or too few distinct characters.
// Any one signal is enough.
func DetectIfScanned(text string) bool {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n < scannedMinChars {
		return true
	}
	words := reWord.FindAllStringIndex(trimmed, -1)
	if float64(len(words))/float64(n) < scannedMinDensity {
		return true
	}
	distinct := make(map[rune]struct{}, 64)
	for _, r := range trimmed {
		distinct[r] = struct{}{}
		if len(distinct) >= scannedMinDistinctCh {
			return false
		}
	}
	return true
}
