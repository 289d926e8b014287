package acquire

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/cv-autofill/internal/entity"
)

const DefaultPackMaxChars = 12000

// PackedInput is the bounded text handed to an extraction engine.
type PackedInput struct {
	Text      string
	PageCount int
	Truncated bool
}

// Pack flattens a document into page-marked text, cutting on a line boundary
// once maxChars runes are reached.
func Pack(doc entity.DocumentRepresentation, maxChars int) PackedInput {
	if maxChars <= 0 {
		maxChars = DefaultPackMaxChars
	}
	out := PackedInput{PageCount: doc.PageCount}

	var b strings.Builder
	used := 0
	write := func(line string) bool {
		n := utf8.RuneCountInString(line) + 1
		if used+n > maxChars {
			out.Truncated = true
			return false
		}
		b.WriteString(line)
		b.WriteByte('\n')
		used += n
		return true
	}

	multi := len(doc.Pages) > 1
pages:
	for _, p := range doc.Pages {
		if multi && !write(fmt.Sprintf("--- page %d ---", p.Number)) {
			break
		}
		for _, ln := range p.Lines {
			if !write(ln) {
				break pages
			}
		}
		for _, t := range p.Tables {
			for _, row := range t.Rows {
				if !write(strings.Join(row, " | ")) {
					break pages
				}
			}
		}
	}
	out.Text = strings.TrimRight(b.String(), "\n")
	return out
}
