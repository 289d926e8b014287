package acquire

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// one alternative per text operator family, in stream order
	reTextOp = regexp.MustCompile(
		`\[((?:\\.|[^\]\\])*)\]\s*TJ` +
			`|\(((?:\\.|[^\\)])*)\)\s*(Tj|'|")` +
			`|(-?\d*\.?\d+)\s+(-?\d*\.?\d+)\s+T[dD]` +
			`|(?:-?\d*\.?\d+\s+){6}Tm` +
			`|T\*|\bET\b`)
	reArrayItem = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)|(-?\d*\.?\d+)`)
)

// kerning offsets past this (thousandths of an em) read as a word gap
const tjSpaceThreshold = -180

// ContentStreamText pulls text out of a PDF content stream. Positioning
// operators that move to a new line become newlines.
func ContentStreamText(data []byte) string {
	var b strings.Builder
	newline := func() {
		s := b.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}
	space := func() {
		s := b.String()
		if s != "" && !strings.HasSuffix(s, "\n") && !strings.HasSuffix(s, " ") {
			b.WriteByte(' ')
		}
	}

	for _, m := range reTextOp.FindAllSubmatch(data, -1) {
		switch {
		case m[1] != nil:
			for _, item := range reArrayItem.FindAllSubmatch(m[1], -1) {
				if item[1] != nil {
					b.WriteString(decodePDFString(item[1]))
					continue
				}
				if n, err := strconv.ParseFloat(string(item[2]), 64); err == nil && n <= tjSpaceThreshold {
					space()
				}
			}
		case m[3] != nil:
			if op := string(m[3]); op == "'" || op == `"` {
				newline()
			}
			b.WriteString(decodePDFString(m[2]))
		case m[5] != nil:
			ty, err := strconv.ParseFloat(string(m[5]), 64)
			if err == nil && ty != 0 {
				newline()
			} else {
				space()
			}
		default:
			newline()
		}
	}
	return strings.TrimSpace(b.String())
}

// decodePDFString handles PDF escapes. Bytes are read as Latin-1, which
// covers WinAnsi umlauts in simple fonts.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteRune(rune(c))
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteRune(rune(val & 0xFF))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
