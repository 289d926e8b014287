package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateParts is a decomposed month/year. Empty strings mean "not found".
type DateParts struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

var (
	reYear         = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	reLeadingMonth = regexp.MustCompile(`^\s*(\d{1,2})\s*[./\-]`)
	reISOMonth     = regexp.MustCompile(`^\s*(?:19|20)\d{2}\s*[./\-]\s*(\d{1,2})\b`)
	reMonthAbbrev  = regexp.MustCompile(`\b(jan|feb|mar|mrz|apr|jun|jul|aug|sep|sept|okt|oct|nov|dez|dec)\b`)
	// folded month names, German and English
	monthNames = []struct {
		name  string
		month int
	}{
		{"januar", 1}, {"january", 1}, {"janner", 1},
		{"februar", 2}, {"february", 2},
		{"marz", 3}, {"maerz", 3}, {"march", 3},
		{"april", 4},
		{"mai", 5}, {"may", 5},
		{"juni", 6}, {"june", 6},
		{"juli", 7}, {"july", 7},
		{"august", 8},
		{"september", 9},
		{"oktober", 10}, {"october", 10},
		{"november", 11},
		{"dezember", 12}, {"december", 12},
	}
	monthAbbrev = map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "mrz": 3, "apr": 4, "jun": 6, "jul": 7, "aug": 8,
		"sep": 9, "sept": 9, "okt": 10, "oct": 10, "nov": 11, "dez": 12, "dec": 12,
	}
	presentWords = []string{"present", "heute", "current", "aktuell", "today", "now", "jetzt"}
)

// DateParser decomposes free-text dates. Now is injectable for tests.
type DateParser struct {
	Now func() time.Time
}

var defaultDateParser = DateParser{Now: time.Now}

// DecomposeDate uses the wall clock for "present".
func DecomposeDate(s string) DateParts {
	return defaultDateParser.Decompose(s)
}

// Decompose never fails; unmatched parts stay empty.
func (p DateParser) Decompose(s string) DateParts {
	key := FoldKey(s)
	if key == "" {
		return DateParts{}
	}
	for _, w := range strings.Fields(key) {
		for _, pw := range presentWords {
			if w == pw {
				return DateParts{Year: strconv.Itoa(p.now().Year())}
			}
		}
	}

	var out DateParts
	if m := reYear.FindStringSubmatch(key); m != nil {
		out.Year = m[1]
	}
	out.Month = monthOf(s, key)
	return out
}

func (p DateParser) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// raw keeps the separators FoldKey turned into spaces.
func monthOf(raw, key string) string {
	if m := reISOMonth.FindStringSubmatch(raw); m != nil {
		if mm := monthNumber(m[1]); mm != "" {
			return mm
		}
	}
	if m := reLeadingMonth.FindStringSubmatch(raw); m != nil {
		if mm := monthNumber(m[1]); mm != "" {
			return mm
		}
	}
	// whole words only; FoldKey already turned a trailing "." into a separator
	for _, w := range strings.Fields(key) {
		for _, mn := range monthNames {
			if w == mn.name {
				return fmt.Sprintf("%02d", mn.month)
			}
		}
	}
	if m := reMonthAbbrev.FindStringSubmatch(key); m != nil {
		return fmt.Sprintf("%02d", monthAbbrev[m[1]])
	}
	return ""
}

func monthNumber(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return ""
	}
	return fmt.Sprintf("%02d", n)
}
