package normalize

import (
	"regexp"
	"strings"
)

// Proficiency levels.
const (
	LevelA1     = "A1"
	LevelA2     = "A2"
	LevelB1     = "B1"
	LevelB2     = "B2"
	LevelC1     = "C1"
	LevelC2     = "C2"
	LevelNative = "Muttersprache"
)

var reCEFR = regexp.MustCompile(`(?i)\b([abc][12])\b`)

// keywords are matched against FoldKey output, so no umlauts or ß
var (
	nativeKeywords = []string{"muttersprach", "mother tongue", "mothertongue", "native", "erstsprache"}
	fluentKeywords = []string{"verhandlungssicher", "fliessend", "fluent", "proficient", "advanced", "sehr gut", "excellent", "business"}
	goodKeywords   = []string{"gut", "good", "upper intermediate", "konversationssicher"}
	basicKeywords  = []string{"grundkenntnisse", "grundlagen", "basic", "elementary", "beginner", "anfanger", "schulkenntnisse"}
)

// LanguageLevel maps a free-text proficiency onto a CEFR level or Muttersprache.
// Order: native keywords, explicit CEFR code, fluent, good, basic, then B1.
func LanguageLevel(s string) string {
	key := FoldKey(s)
	if containsAny(key, nativeKeywords) {
		return LevelNative
	}
	if m := reCEFR.FindStringSubmatch(key); m != nil {
		return strings.ToUpper(m[1])
	}
	switch {
	case containsAny(key, fluentKeywords):
		return LevelC1
	case containsAny(key, goodKeywords):
		return LevelB2
	case containsAny(key, basicKeywords):
		return LevelA2
	}
	return LevelB1
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
