// Package normalizer cleans extracted document text before chunking.
// Normalize is a pure function and idempotent: running it twice yields
// the same output as running it once.
package normalizer

import (
	"strings"
	"unicode"
)

const defaultBoilerplateThreshold = 3

type Normalizer struct {
	// boilerplateThreshold is the number of verbatim occurrences at
	// which a line is treated as a repeated header/footer and dropped.
	// Zero disables boilerplate removal.
	boilerplateThreshold int
}

type Option func(*Normalizer)

func WithBoilerplateThreshold(n int) Option {
	return func(nz *Normalizer) {
		nz.boilerplateThreshold = n
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		boilerplateThreshold: defaultBoilerplateThreshold,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize collapses whitespace, strips non-printable characters,
// joins line-wrapped hyphenated words and drops repeated boilerplate
// lines.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = stripNonPrintable(text)

	// dropping a boilerplate line can expose a fresh hyphen seam, so
	// the passes repeat until the text is stable
	for {
		next := n.pass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func (n *Normalizer) pass(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}

	if n.boilerplateThreshold > 0 {
		lines = dropBoilerplate(lines, n.boilerplateThreshold)
	}

	text = dehyphenate(strings.Join(lines, "\n"))
	return collapseBlankLines(strings.Split(text, "\n"))
}

func stripNonPrintable(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, text)
}

// dehyphenate joins words wrapped across a line break, e.g.
// "exam-\nple" becomes "example". Only letter-hyphen-newline-letter
// sequences qualify so dashes and bullet lines survive.
func dehyphenate(text string) string {
	runes := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text))

	for i := 0; i < len(runes); i++ {
		if runes[i] == '-' && i > 0 && unicode.IsLetter(runes[i-1]) {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
				j++
			}
			if j < len(runes) && runes[j] == '\n' {
				j++
				for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
					j++
				}
				if j < len(runes) && unicode.IsLetter(runes[j]) {
					i = j - 1
					continue
				}
			}
		}
		sb.WriteRune(runes[i])
	}
	return sb.String()
}

func collapseSpaces(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// dropBoilerplate removes lines that repeat verbatim at least
// threshold times, the repetition heuristic for headers and footers.
func dropBoilerplate(lines []string, threshold int) []string {
	counts := make(map[string]int)
	for _, line := range lines {
		if line == "" {
			continue
		}
		counts[line]++
	}

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" && counts[line] >= threshold {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

func collapseBlankLines(lines []string) string {
	var sb strings.Builder
	blanks := 0
	wrote := false

	for _, line := range lines {
		if line == "" {
			blanks++
			continue
		}
		if wrote {
			if blanks > 0 {
				sb.WriteString("\n\n")
			} else {
				sb.WriteString("\n")
			}
		}
		sb.WriteString(line)
		wrote = true
		blanks = 0
	}
	return sb.String()
}
